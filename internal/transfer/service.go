package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atlas-pay/atlas_pay/internal/cache"
	"github.com/atlas-pay/atlas_pay/internal/identity"
	"github.com/atlas-pay/atlas_pay/internal/ledger"
	"github.com/atlas-pay/atlas_pay/internal/notification"
	"github.com/atlas-pay/atlas_pay/internal/wallet"
)

var (
	// ErrRecipientNotFound indicates the recipient wallet number matches no
	// wallet. Exact match only; returned by both the verify and transfer steps.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrSelfTransfer rejects transfers into the sender's own wallet.
	ErrSelfTransfer = errors.New("cannot transfer to own wallet")
)

const historyTTL = time.Minute

// Service coordinates the two-step verify/transfer protocol and exposes the
// transaction log.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	ids      *identity.Service
	notifier notification.Notifier
	cache    *redis.Client
	logger   *slog.Logger
}

// NewService constructs a transfer service. The Redis client and notifier are
// optional; without them history caching and notifications are skipped.
func NewService(led ledger.Ledger, wallets *wallet.Service, ids *identity.Service,
	notifier notification.Notifier, rdb *redis.Client, logger *slog.Logger) *Service {
	return &Service{ledger: led, wallets: wallets, ids: ids, notifier: notifier, cache: rdb, logger: logger}
}

// VerifyRecipient resolves a recipient's display name from a wallet number so
// the client can confirm before committing funds. It takes no lock and
// mutates nothing.
func (s *Service) VerifyRecipient(ctx context.Context, walletNumber string) (string, error) {
	w, err := s.wallets.GetByNumber(ctx, walletNumber)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return "", ErrRecipientNotFound
		}
		return "", err
	}
	owner, err := s.ids.Get(ctx, w.OwnerID)
	if err != nil {
		return "", err
	}
	return owner.FullName, nil
}

// TransferInput captures the transfer step's payload.
type TransferInput struct {
	SenderID     string
	WalletNumber string
	Amount       decimal.Decimal
	Description  string
	PIN          string
}

// TransferResult reports the sender's new balance and the recipient's name.
type TransferResult struct {
	TransactionID string
	NewBalance    decimal.Decimal
	RecipientName string
}

// Transfer executes the mutating step: amount check, PIN authorization before
// any lock is taken, then an atomic debit/credit/log posting in the ledger.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if err := ledger.CheckAmount(input.Amount); err != nil {
		return TransferResult{}, err
	}

	// Authorization happens before any row is locked so failed attempts add
	// no contention on the wallet rows.
	if err := s.ids.VerifyPIN(ctx, input.SenderID, input.PIN); err != nil {
		return TransferResult{}, err
	}

	sender, err := s.wallets.GetByOwner(ctx, input.SenderID)
	if err != nil {
		return TransferResult{}, err
	}

	recipient, err := s.wallets.GetByNumber(ctx, input.WalletNumber)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return TransferResult{}, ErrRecipientNotFound
		}
		return TransferResult{}, err
	}
	if recipient.WalletNumber == sender.WalletNumber {
		return TransferResult{}, ErrSelfTransfer
	}

	receiver, err := s.ids.Get(ctx, recipient.OwnerID)
	if err != nil {
		return TransferResult{}, err
	}

	res, err := s.ledger.Transfer(ctx, ledger.TransferPosting{
		FromNumber:   sender.WalletNumber,
		ToNumber:     recipient.WalletNumber,
		Amount:       input.Amount,
		SenderID:     input.SenderID,
		ReceiverID:   recipient.OwnerID,
		ReceiverName: receiver.FullName,
		Description:  input.Description,
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.invalidateHistory(ctx, input.SenderID, recipient.OwnerID)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.OwnerID,
			Body:        fmt.Sprintf("You received %s from wallet %s", input.Amount.StringFixed(2), sender.WalletNumber),
		})
	}

	return TransferResult{
		TransactionID: res.TransactionID,
		NewBalance:    res.FromBalance,
		RecipientName: receiver.FullName,
	}, nil
}

// History lists the user's transactions newest first, cached briefly in Redis.
func (s *Service) History(ctx context.Context, userID string, dir ledger.Direction) ([]ledger.Transaction, error) {
	switch dir {
	case ledger.DirectionIncoming, ledger.DirectionOutgoing, ledger.DirectionAll:
	default:
		dir = ledger.DirectionAll
	}

	key := historyKey(userID, dir)
	if s.cache != nil {
		var cached []ledger.Transaction
		if found, err := cache.Get(ctx, s.cache, key, &cached); err == nil && found {
			return cached, nil
		} else if err != nil && s.logger != nil {
			s.logger.Warn("history cache read failed", "key", key, "error", err)
		}
	}

	list, err := s.ledger.ListTransactions(ctx, userID, dir)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.Set(ctx, s.cache, key, list, historyTTL); err != nil && s.logger != nil {
			s.logger.Warn("history cache write failed", "key", key, "error", err)
		}
	}
	return list, nil
}

// Get returns a single transaction, but only to its sender or receiver.
func (s *Service) Get(ctx context.Context, userID, txID string) (ledger.Transaction, error) {
	tx, err := s.ledger.GetTransaction(ctx, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !participant(tx, userID) {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

// InvalidateHistory drops cached history for the given users. Exposed so the
// deposit flow can reuse the same cache discipline.
func (s *Service) InvalidateHistory(ctx context.Context, userIDs ...string) {
	s.invalidateHistory(ctx, userIDs...)
}

func (s *Service) invalidateHistory(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(userIDs)*3)
	for _, id := range userIDs {
		for _, dir := range []ledger.Direction{ledger.DirectionIncoming, ledger.DirectionOutgoing, ledger.DirectionAll} {
			keys = append(keys, historyKey(id, dir))
		}
	}
	if err := cache.Delete(ctx, s.cache, keys...); err != nil && s.logger != nil {
		s.logger.Warn("history cache invalidation failed", "error", err)
	}
}

func historyKey(userID string, dir ledger.Direction) string {
	return "txhistory:v1:" + userID + ":" + string(dir)
}

func participant(tx ledger.Transaction, userID string) bool {
	if tx.SenderID != nil && *tx.SenderID == userID {
		return true
	}
	return tx.ReceiverID != nil && *tx.ReceiverID == userID
}
