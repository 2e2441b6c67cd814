package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-pay/atlas_pay/internal/ledger"
)

// maxNumberAttempts bounds wallet-number collision retries during creation.
const maxNumberAttempts = 5

// Service exposes wallet provisioning and balance lookups backed by the ledger.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Create provisions exactly one wallet for the owner with a fresh unique
// wallet number and a zero-balance ledger account.
func (s *Service) Create(ctx context.Context, ownerID string) (Wallet, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return Wallet{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := newWalletNumber()
		if err != nil {
			return Wallet{}, err
		}

		w := Wallet{
			ID:           uuid.NewString(),
			OwnerID:      ownerID,
			WalletNumber: number,
			CreatedAt:    time.Now().UTC(),
		}

		if err := s.repo.Create(ctx, w); err != nil {
			if errors.Is(err, ErrNumberTaken) {
				lastErr = err
				continue
			}
			return Wallet{}, err
		}

		if err := s.ledger.CreateAccount(ctx, number); err != nil {
			// Undo the metadata insert so no wallet exists without a
			// backing ledger account.
			if delErr := s.repo.Delete(ctx, w.ID); delErr != nil {
				return Wallet{}, errors.Join(err, delErr)
			}
			return Wallet{}, err
		}
		return w, nil
	}
	return Wallet{}, fmt.Errorf("allocate wallet number: %w", lastErr)
}

// GetByOwner retrieves the caller's wallet metadata.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// GetByNumber resolves a wallet by its public number, exact match only.
func (s *Service) GetByNumber(ctx context.Context, walletNumber string) (Wallet, error) {
	return s.repo.GetByNumber(ctx, walletNumber)
}

// Balance returns the ledger balance for the owner's wallet.
func (s *Service) Balance(ctx context.Context, ownerID string) (Balance, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Balance(ctx, w.WalletNumber)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletNumber: w.WalletNumber, Amount: amount, AsOf: time.Now().UTC()}, nil
}
