package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists balances and the transaction log in PostgreSQL.
//
// Expected schema:
//
//	accounts (wallet_number TEXT PRIMARY KEY,
//	          balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0))
//	transactions (id UUID PRIMARY KEY,
//	          sender_id UUID, receiver_id UUID,
//	          amount NUMERIC(20,2) NOT NULL,
//	          receiver_name TEXT NOT NULL, receiver_wallet_number TEXT NOT NULL,
//	          description TEXT NOT NULL DEFAULT '',
//	          kind TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL)
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateAccount guarantees an account row exists for the wallet number.
func (l *PostgresLedger) CreateAccount(ctx context.Context, walletNumber string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (wallet_number, balance) VALUES ($1, 0)
        ON CONFLICT (wallet_number) DO NOTHING`, walletNumber)
	return err
}

// Balance returns the committed balance for the wallet number.
func (l *PostgresLedger) Balance(ctx context.Context, walletNumber string) (decimal.Decimal, error) {
	var raw string
	err := l.db.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE wallet_number = $1`, walletNumber).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// Transfer debits the sender, credits the receiver and appends the audit
// record in a single transaction. Both rows are locked FOR UPDATE in
// ascending wallet-number order so two opposite-direction transfers can
// never deadlock.
func (l *PostgresLedger) Transfer(ctx context.Context, posting TransferPosting) (TransferResult, error) {
	if err := CheckAmount(posting.Amount); err != nil {
		return TransferResult{}, err
	}
	if posting.FromNumber == posting.ToNumber {
		return TransferResult{}, ErrSameAccount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balances := make(map[string]decimal.Decimal, 2)
	for _, number := range lockOrder(posting.FromNumber, posting.ToNumber) {
		balance, err := lockAccount(ctx, tx, number)
		if err != nil {
			return TransferResult{}, err
		}
		balances[number] = balance
	}

	fromBalance := balances[posting.FromNumber]
	if fromBalance.LessThan(posting.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	fromBalance = fromBalance.Sub(posting.Amount)
	toBalance := balances[posting.ToNumber].Add(posting.Amount)

	if err := setBalance(ctx, tx, posting.FromNumber, fromBalance); err != nil {
		return TransferResult{}, err
	}
	if err := setBalance(ctx, tx, posting.ToNumber, toBalance); err != nil {
		return TransferResult{}, err
	}

	txID := uuid.New()
	senderID, err := uuid.Parse(posting.SenderID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("parse sender id: %w", err)
	}
	receiverID, err := uuid.Parse(posting.ReceiverID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("parse receiver id: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions
        (id, sender_id, receiver_id, amount, receiver_name, receiver_wallet_number, description, kind, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		txID, senderID, receiverID, posting.Amount.StringFixed(2), posting.ReceiverName,
		posting.ToNumber, posting.Description, KindTransfer, time.Now().UTC()); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{TransactionID: txID.String(), FromBalance: fromBalance, ToBalance: toBalance}, nil
}

// Deposit credits a single wallet row and appends a deposit record atomically.
func (l *PostgresLedger) Deposit(ctx context.Context, posting DepositPosting) (DepositResult, error) {
	if err := CheckAmount(posting.Amount); err != nil {
		return DepositResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DepositResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockAccount(ctx, tx, posting.Number)
	if err != nil {
		return DepositResult{}, err
	}

	balance = balance.Add(posting.Amount)
	if err := setBalance(ctx, tx, posting.Number, balance); err != nil {
		return DepositResult{}, err
	}

	txID := uuid.New()
	ownerID, err := uuid.Parse(posting.OwnerID)
	if err != nil {
		return DepositResult{}, fmt.Errorf("parse owner id: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO transactions
        (id, receiver_id, amount, receiver_name, receiver_wallet_number, description, kind, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txID, ownerID, posting.Amount.StringFixed(2), posting.OwnerName,
		posting.Number, posting.Description, KindDeposit, time.Now().UTC()); err != nil {
		return DepositResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DepositResult{}, err
	}

	return DepositResult{TransactionID: txID.String(), Balance: balance}, nil
}

// ListTransactions returns the user's postings newest first.
func (l *PostgresLedger) ListTransactions(ctx context.Context, userID string, dir Direction) ([]Transaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	base := `SELECT id, sender_id, receiver_id, amount::text, receiver_name,
        receiver_wallet_number, description, kind, created_at FROM transactions `
	var where string
	switch dir {
	case DirectionOutgoing:
		where = `WHERE sender_id = $1 `
	case DirectionIncoming:
		where = `WHERE receiver_id = $1 `
	default:
		where = `WHERE sender_id = $1 OR receiver_id = $1 `
	}

	rows, err := l.db.Query(ctx, base+where+`ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// GetTransaction fetches a single log record by id.
func (l *PostgresLedger) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}

	row := l.db.QueryRow(ctx, `SELECT id, sender_id, receiver_id, amount::text, receiver_name,
        receiver_wallet_number, description, kind, created_at FROM transactions WHERE id = $1`, txID)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

func lockOrder(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

func lockAccount(ctx context.Context, tx pgx.Tx, walletNumber string) (decimal.Decimal, error) {
	var raw string
	err := tx.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE wallet_number = $1 FOR UPDATE`, walletNumber).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func setBalance(ctx context.Context, tx pgx.Tx, walletNumber string, balance decimal.Decimal) error {
	cmd, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE wallet_number = $2`,
		balance.StringFixed(2), walletNumber)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx         Transaction
		id         uuid.UUID
		senderID   *uuid.UUID
		receiverID *uuid.UUID
		amount     string
		createdAt  time.Time
	)
	if err := row.Scan(&id, &senderID, &receiverID, &amount, &tx.ReceiverName,
		&tx.ReceiverWalletNumber, &tx.Description, &tx.Kind, &createdAt); err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	if senderID != nil {
		s := senderID.String()
		tx.SenderID = &s
	}
	if receiverID != nil {
		r := receiverID.String()
		tx.ReceiverID = &r
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, err
	}
	tx.Amount = parsed
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}
