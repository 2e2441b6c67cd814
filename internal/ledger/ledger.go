package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the sender wallet lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the wallet number does not match any account.
	// Lookups are exact-match only.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount rejects amounts that are not strictly positive or carry
	// more than two fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrTransactionNotFound indicates the transaction id does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSameAccount rejects postings where sender and receiver are the same
	// wallet.
	ErrSameAccount = errors.New("sender and receiver are the same account")
)

const (
	// KindTransfer tags wallet-to-wallet postings in the transaction log.
	KindTransfer = "transfer"
	// KindDeposit tags single-sided deposit postings.
	KindDeposit = "deposit"
)

// Direction filters transaction-log queries by the user's role in the posting.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionAll      Direction = "all"
)

// Transaction is an immutable record of a completed posting. Receiver name and
// wallet number are denormalized at creation time so the audit record stays
// stable even if the receiver account later changes.
type Transaction struct {
	ID                   string
	SenderID             *string
	ReceiverID           *string
	Amount               decimal.Decimal
	ReceiverName         string
	ReceiverWalletNumber string
	Description          string
	Kind                 string
	CreatedAt            time.Time
}

// TransferPosting carries everything the ledger needs to move funds and append
// the audit record in one atomic unit.
type TransferPosting struct {
	FromNumber   string
	ToNumber     string
	Amount       decimal.Decimal
	SenderID     string
	ReceiverID   string
	ReceiverName string
	Description  string
}

// TransferResult captures the outcome of a transfer posting.
type TransferResult struct {
	TransactionID string
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
}

// DepositPosting credits a single wallet and appends a deposit record.
type DepositPosting struct {
	Number      string
	OwnerID     string
	OwnerName   string
	Amount      decimal.Decimal
	Description string
}

// DepositResult captures the outcome of a deposit posting.
type DepositResult struct {
	TransactionID string
	Balance       decimal.Decimal
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Balances are keyed by wallet number; every mutation holds the affected row
// locks from acquisition through commit or rollback.
type Ledger interface {
	CreateAccount(ctx context.Context, walletNumber string) error
	Balance(ctx context.Context, walletNumber string) (decimal.Decimal, error)
	Transfer(ctx context.Context, posting TransferPosting) (TransferResult, error)
	Deposit(ctx context.Context, posting DepositPosting) (DepositResult, error)
	ListTransactions(ctx context.Context, userID string, dir Direction) ([]Transaction, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
}

// CheckAmount validates that an amount is strictly positive with at most two
// fractional digits.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}
