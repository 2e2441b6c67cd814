package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atlas-pay/atlas_pay/internal/identity"
	"github.com/atlas-pay/atlas_pay/internal/ledger"
	"github.com/atlas-pay/atlas_pay/internal/notification"
	"github.com/atlas-pay/atlas_pay/internal/wallet"
)

type fixture struct {
	ids     *identity.Service
	wallets *wallet.Service
	led     ledger.Ledger
	svc     *Service
}

type testNotifier struct {
	mu   sync.Mutex
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	return nil
}

func newFixture(notifier notification.Notifier) *fixture {
	led := ledger.NewInMemory()
	ids := identity.NewService(identity.NewMemoryRepository())
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	return &fixture{
		ids:     ids,
		wallets: wallets,
		led:     led,
		svc:     NewService(led, wallets, ids, notifier, nil, nil),
	}
}

func (f *fixture) register(t *testing.T, email, name, pin string) (identity.User, wallet.Wallet) {
	t.Helper()
	ctx := context.Background()
	user, err := f.ids.Register(ctx, identity.RegisterInput{
		Email:           email,
		Password:        "a-long-password",
		ConfirmPassword: "a-long-password",
		PIN:             pin,
		FullName:        name,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	w, err := f.wallets.Create(ctx, user.ID)
	if err != nil {
		t.Fatalf("create wallet for %s: %v", email, err)
	}
	return user, w
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestVerifyRecipient(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	_, w := f.register(t, "bob@example.com", "Bob Odhiambo", "1234")

	name, err := f.svc.VerifyRecipient(ctx, w.WalletNumber)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if name != "Bob Odhiambo" {
		t.Fatalf("expected recipient name, got %q", name)
	}

	if _, err := f.svc.VerifyRecipient(ctx, "000000"); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected recipient not found, got %v", err)
	}

	// The verify step must not touch any balance.
	bal, err := f.led.Balance(ctx, w.WalletNumber)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.IsZero() {
		t.Fatalf("verify mutated balance: %s", bal)
	}
}

func TestTransferHappyPath(t *testing.T) {
	notifier := &testNotifier{}
	f := newFixture(notifier)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	bob, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "100.00"))

	res, err := f.svc.Transfer(ctx, TransferInput{
		SenderID:     alice.ID,
		WalletNumber: bw.WalletNumber,
		Amount:       dec(t, "30.00"),
		Description:  "rent",
		PIN:          "1234",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if !res.NewBalance.Equal(dec(t, "70.00")) {
		t.Fatalf("expected new balance 70.00, got %s", res.NewBalance)
	}
	if res.RecipientName != "Bob Odhiambo" {
		t.Fatalf("expected recipient name in response, got %q", res.RecipientName)
	}

	bobBalance, _ := f.led.Balance(ctx, bw.WalletNumber)
	if !bobBalance.Equal(dec(t, "30.00")) {
		t.Fatalf("expected recipient balance 30.00, got %s", bobBalance)
	}

	// Exactly one transaction with denormalized receiver fields.
	list, err := f.svc.History(ctx, alice.ID, ledger.DirectionOutgoing)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(list))
	}
	tx := list[0]
	if !tx.Amount.Equal(dec(t, "30.00")) || tx.ReceiverName != "Bob Odhiambo" || tx.Description != "rent" {
		t.Fatalf("unexpected record: %+v", tx)
	}
	if tx.ReceiverWalletNumber != bw.WalletNumber {
		t.Fatalf("expected denormalized wallet number %s, got %s", bw.WalletNumber, tx.ReceiverWalletNumber)
	}

	if notifier.last.Destination != bob.ID || notifier.last.Kind != notification.KindTransferReceived {
		t.Fatalf("expected notification to receiver, got %+v", notifier.last)
	}
}

func TestTransferWrongPINLeavesStateUntouched(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	_, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "100.00"))

	_, err := f.svc.Transfer(ctx, TransferInput{
		SenderID:     alice.ID,
		WalletNumber: bw.WalletNumber,
		Amount:       dec(t, "30.00"),
		PIN:          "9999",
	})
	if !errors.Is(err, identity.ErrInvalidPIN) {
		t.Fatalf("expected invalid PIN, got %v", err)
	}

	aliceBalance, _ := f.led.Balance(ctx, aw.WalletNumber)
	bobBalance, _ := f.led.Balance(ctx, bw.WalletNumber)
	if !aliceBalance.Equal(dec(t, "100.00")) || !bobBalance.IsZero() {
		t.Fatalf("balances changed after failed auth: %s / %s", aliceBalance, bobBalance)
	}

	list, _ := f.svc.History(ctx, alice.ID, ledger.DirectionAll)
	if len(list) != 0 {
		t.Fatalf("expected no transaction record, got %d", len(list))
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	_, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "10.00"))

	_, err := f.svc.Transfer(ctx, TransferInput{
		SenderID:     alice.ID,
		WalletNumber: bw.WalletNumber,
		Amount:       dec(t, "30.00"),
		PIN:          "1234",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	aliceBalance, _ := f.led.Balance(ctx, aw.WalletNumber)
	if !aliceBalance.Equal(dec(t, "10.00")) {
		t.Fatalf("sender balance changed: %s", aliceBalance)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	_, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "100.00"))

	if _, err := f.svc.Transfer(ctx, TransferInput{
		SenderID: alice.ID, WalletNumber: bw.WalletNumber, Amount: dec(t, "-1.00"), PIN: "1234",
	}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	if _, err := f.svc.Transfer(ctx, TransferInput{
		SenderID: alice.ID, WalletNumber: "999999", Amount: dec(t, "5.00"), PIN: "1234",
	}); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected recipient not found, got %v", err)
	}

	if _, err := f.svc.Transfer(ctx, TransferInput{
		SenderID: alice.ID, WalletNumber: aw.WalletNumber, Amount: dec(t, "5.00"), PIN: "1234",
	}); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected self-transfer rejection, got %v", err)
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	_, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "100.00"))

	// 8 concurrent 25.00 transfers against a 100.00 balance: at most 4 commit.
	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(ctx, TransferInput{
				SenderID:     alice.ID,
				WalletNumber: bw.WalletNumber,
				Amount:       dec(t, "25.00"),
				PIN:          "1234",
			})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var succeeded int
	for err := range errCh {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ledger.ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded > 4 {
		t.Fatalf("overdraw: %d transfers committed", succeeded)
	}

	aliceBalance, _ := f.led.Balance(ctx, aw.WalletNumber)
	if aliceBalance.IsNegative() {
		t.Fatalf("sender balance went negative: %s", aliceBalance)
	}

	list, _ := f.svc.History(ctx, alice.ID, ledger.DirectionOutgoing)
	if len(list) != succeeded {
		t.Fatalf("expected %d records, got %d", succeeded, len(list))
	}
}

func newCachedFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	led := ledger.NewInMemory()
	ids := identity.NewService(identity.NewMemoryRepository())
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led)
	return &fixture{
		ids:     ids,
		wallets: wallets,
		led:     led,
		svc:     NewService(led, wallets, ids, nil, client, nil),
	}, srv
}

func historyAll(t *testing.T, f *fixture, userID string) []ledger.Transaction {
	t.Helper()
	list, err := f.svc.History(context.Background(), userID, ledger.DirectionAll)
	if err != nil {
		t.Fatalf("history for %s: %v", userID, err)
	}
	return list
}

func TestHistoryCachedAndInvalidatedOnTransfer(t *testing.T) {
	f, srv := newCachedFixture(t)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	bob, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "100.00"))

	if _, err := f.svc.Transfer(ctx, TransferInput{
		SenderID: alice.ID, WalletNumber: bw.WalletNumber, Amount: dec(t, "10.00"), PIN: "1234",
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if n := len(historyAll(t, f, alice.ID)); n != 1 {
		t.Fatalf("expected 1 record for sender, got %d", n)
	}
	if n := len(historyAll(t, f, bob.ID)); n != 1 {
		t.Fatalf("expected 1 record for receiver, got %d", n)
	}

	// A posting made directly against the ledger bypasses invalidation, so
	// both lists keep serving the cached copy until the TTL lapses.
	if _, err := f.led.Transfer(ctx, ledger.TransferPosting{
		FromNumber: aw.WalletNumber, ToNumber: bw.WalletNumber,
		Amount: dec(t, "5.00"), SenderID: alice.ID, ReceiverID: bob.ID,
		ReceiverName: "Bob Odhiambo",
	}); err != nil {
		t.Fatalf("direct ledger posting: %v", err)
	}
	if n := len(historyAll(t, f, alice.ID)); n != 1 {
		t.Fatalf("expected cached list of 1, got %d", n)
	}
	srv.FastForward(2 * time.Minute)
	if n := len(historyAll(t, f, alice.ID)); n != 2 {
		t.Fatalf("expected fresh list of 2 after expiry, got %d", n)
	}
	if n := len(historyAll(t, f, bob.ID)); n != 2 {
		t.Fatalf("expected fresh receiver list of 2 after expiry, got %d", n)
	}

	// A transfer through the service drops both parties' cached lists
	// immediately, no TTL wait.
	if _, err := f.svc.Transfer(ctx, TransferInput{
		SenderID: alice.ID, WalletNumber: bw.WalletNumber, Amount: dec(t, "5.00"), PIN: "1234",
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if n := len(historyAll(t, f, alice.ID)); n != 3 {
		t.Fatalf("expected sender history of 3 after invalidation, got %d", n)
	}
	if n := len(historyAll(t, f, bob.ID)); n != 3 {
		t.Fatalf("expected receiver history of 3 after invalidation, got %d", n)
	}
}

func TestGetTransactionRestrictedToParticipants(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	alice, aw := f.register(t, "alice@example.com", "Alice Wanjiru", "1234")
	bob, bw := f.register(t, "bob@example.com", "Bob Odhiambo", "5678")
	eve, _ := f.register(t, "eve@example.com", "Eve Njoroge", "0000")
	ledger.SeedBalance(f.led, aw.WalletNumber, dec(t, "100.00"))

	res, err := f.svc.Transfer(ctx, TransferInput{
		SenderID: alice.ID, WalletNumber: bw.WalletNumber, Amount: dec(t, "5.00"), PIN: "1234",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if _, err := f.svc.Get(ctx, alice.ID, res.TransactionID); err != nil {
		t.Fatalf("sender should see transaction: %v", err)
	}
	if _, err := f.svc.Get(ctx, bob.ID, res.TransactionID); err != nil {
		t.Fatalf("receiver should see transaction: %v", err)
	}
	if _, err := f.svc.Get(ctx, eve.ID, res.TransactionID); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("expected not found for third party, got %v", err)
	}
}
