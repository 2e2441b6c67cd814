package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no wallet matches the lookup.
var ErrNotFound = errors.New("wallet not found")

// ErrNumberTaken indicates a wallet-number collision on insert.
var ErrNumberTaken = errors.New("wallet number already in use")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
	GetByNumber(ctx context.Context, walletNumber string) (Wallet, error)
	Delete(ctx context.Context, id string) error
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(wallet.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, wallet_number, created_at)
        VALUES ($1, $2, $3, $4)`, walletID, ownerID, wallet.WalletNumber, wallet.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrNumberTaken
	}
	return err
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), raised on wallet-number collisions.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByOwner fetches the wallet owned by the given user.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, wallet_number, created_at
        FROM wallets WHERE owner_id = $1`, owner)
	return scanWallet(row)
}

// GetByNumber fetches a wallet by its public number, exact match only.
func (r *PostgresRepository) GetByNumber(ctx context.Context, walletNumber string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, wallet_number, created_at
        FROM wallets WHERE wallet_number = $1`, walletNumber)
	return scanWallet(row)
}

// Delete removes a wallet row. Used to roll back provisioning when the
// ledger account cannot be created.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, walletID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		ownerID   uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &ownerID, &w.WalletNumber, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
