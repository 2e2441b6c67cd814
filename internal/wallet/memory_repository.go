package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byNumber map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{byNumber: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byNumber[wallet.WalletNumber]; exists {
		return ErrNumberTaken
	}
	r.byNumber[wallet.WalletNumber] = wallet
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for number, wallet := range r.byNumber {
		if wallet.ID == id {
			delete(r.byNumber, number)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, wallet := range r.byNumber {
		if wallet.OwnerID == ownerID {
			return wallet, nil
		}
	}
	return Wallet{}, ErrNotFound
}

func (r *memoryRepository) GetByNumber(_ context.Context, walletNumber string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.byNumber[walletNumber]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return wallet, nil
}
