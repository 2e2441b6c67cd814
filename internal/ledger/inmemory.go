package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	log      []Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests. A single mutex serializes postings, which gives the same isolation
// the Postgres backend achieves with row locks.
func NewInMemory() Ledger {
	return &inMemoryLedger{balances: make(map[string]decimal.Decimal)}
}

func (l *inMemoryLedger) CreateAccount(_ context.Context, walletNumber string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[walletNumber]; !exists {
		l.balances[walletNumber] = decimal.Zero
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, walletNumber string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[walletNumber]
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, posting TransferPosting) (TransferResult, error) {
	if err := CheckAmount(posting.Amount); err != nil {
		return TransferResult{}, err
	}
	if posting.FromNumber == posting.ToNumber {
		return TransferResult{}, ErrSameAccount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance, ok := l.balances[posting.FromNumber]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	toBalance, ok := l.balances[posting.ToNumber]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}

	if fromBalance.LessThan(posting.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	fromBalance = fromBalance.Sub(posting.Amount)
	toBalance = toBalance.Add(posting.Amount)

	l.balances[posting.FromNumber] = fromBalance
	l.balances[posting.ToNumber] = toBalance

	senderID := posting.SenderID
	receiverID := posting.ReceiverID
	tx := Transaction{
		ID:                   uuid.NewString(),
		SenderID:             &senderID,
		ReceiverID:           &receiverID,
		Amount:               posting.Amount,
		ReceiverName:         posting.ReceiverName,
		ReceiverWalletNumber: posting.ToNumber,
		Description:          posting.Description,
		Kind:                 KindTransfer,
		CreatedAt:            time.Now().UTC(),
	}
	l.log = append(l.log, tx)

	return TransferResult{TransactionID: tx.ID, FromBalance: fromBalance, ToBalance: toBalance}, nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, posting DepositPosting) (DepositResult, error) {
	if err := CheckAmount(posting.Amount); err != nil {
		return DepositResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[posting.Number]
	if !ok {
		return DepositResult{}, ErrAccountNotFound
	}

	balance = balance.Add(posting.Amount)
	l.balances[posting.Number] = balance

	ownerID := posting.OwnerID
	tx := Transaction{
		ID:                   uuid.NewString(),
		ReceiverID:           &ownerID,
		Amount:               posting.Amount,
		ReceiverName:         posting.OwnerName,
		ReceiverWalletNumber: posting.Number,
		Description:          posting.Description,
		Kind:                 KindDeposit,
		CreatedAt:            time.Now().UTC(),
	}
	l.log = append(l.log, tx)

	return DepositResult{TransactionID: tx.ID, Balance: balance}, nil
}

func (l *inMemoryLedger) ListTransactions(_ context.Context, userID string, dir Direction) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Transaction
	for _, tx := range l.log {
		if matchesDirection(tx, userID, dir) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (l *inMemoryLedger) GetTransaction(_ context.Context, id string) (Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.log {
		if tx.ID == id {
			return tx, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func matchesDirection(tx Transaction, userID string, dir Direction) bool {
	sent := tx.SenderID != nil && *tx.SenderID == userID
	received := tx.ReceiverID != nil && *tx.ReceiverID == userID
	switch dir {
	case DirectionOutgoing:
		return sent
	case DirectionIncoming:
		return received
	default:
		return sent || received
	}
}
