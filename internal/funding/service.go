package funding

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-pay/atlas_pay/internal/identity"
	"github.com/atlas-pay/atlas_pay/internal/ledger"
	"github.com/atlas-pay/atlas_pay/internal/wallet"
)

// Service coordinates deposits into a user's own wallet.
type Service struct {
	ledger  ledger.Ledger
	wallets *wallet.Service
	ids     *identity.Service
}

// NewService prepares a funding service.
func NewService(ledgerBackend ledger.Ledger, wallets *wallet.Service, ids *identity.Service) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("identity service is required")
	}
	return &Service{ledger: ledgerBackend, wallets: wallets, ids: ids}, nil
}

// DepositInput captures the data for a wallet top-up.
type DepositInput struct {
	OwnerID     string
	Amount      decimal.Decimal
	Description string
}

// DepositResult represents the outcome of a deposit.
type DepositResult struct {
	TransactionID string
	NewBalance    decimal.Decimal
}

// Deposit credits the caller's wallet under its row lock and appends a
// deposit record to the transaction log.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (DepositResult, error) {
	if err := ledger.CheckAmount(input.Amount); err != nil {
		return DepositResult{}, err
	}

	w, err := s.wallets.GetByOwner(ctx, input.OwnerID)
	if err != nil {
		return DepositResult{}, err
	}
	owner, err := s.ids.Get(ctx, input.OwnerID)
	if err != nil {
		return DepositResult{}, err
	}

	res, err := s.ledger.Deposit(ctx, ledger.DepositPosting{
		Number:      w.WalletNumber,
		OwnerID:     input.OwnerID,
		OwnerName:   owner.FullName,
		Amount:      input.Amount,
		Description: input.Description,
	})
	if err != nil {
		return DepositResult{}, err
	}

	return DepositResult{TransactionID: res.TransactionID, NewBalance: res.Balance}, nil
}
