package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func transferPosting(from, to string, amount decimal.Decimal) TransferPosting {
	return TransferPosting{
		FromNumber:   from,
		ToNumber:     to,
		Amount:       amount,
		SenderID:     uuid.NewString(),
		ReceiverID:   uuid.NewString(),
		ReceiverName: "Jane Doe",
	}
}

func TestInMemoryLedger_TransferMovesFundsAndLogs(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.CreateAccount(ctx, "100001"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := l.CreateAccount(ctx, "100002"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	SeedBalance(l, "100001", dec("100.00"))

	posting := transferPosting("100001", "100002", dec("30.00"))
	posting.Description = "rent"
	res, err := l.Transfer(ctx, posting)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if !res.FromBalance.Equal(dec("70.00")) {
		t.Fatalf("expected from balance 70.00, got %s", res.FromBalance)
	}
	if !res.ToBalance.Equal(dec("30.00")) {
		t.Fatalf("expected to balance 30.00, got %s", res.ToBalance)
	}

	tx, err := l.GetTransaction(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !tx.Amount.Equal(dec("30.00")) || tx.Kind != KindTransfer {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.ReceiverWalletNumber != "100002" || tx.Description != "rent" {
		t.Fatalf("denormalized fields wrong: %+v", tx)
	}

	ledgerImpl := l.(*inMemoryLedger)
	total := ledgerImpl.balances["100001"].Add(ledgerImpl.balances["100002"])
	if !total.Equal(dec("100.00")) {
		t.Fatalf("ledger not balanced, total=%s", total)
	}
}

func TestInMemoryLedger_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, "100001")
	l.CreateAccount(ctx, "100002")
	SeedBalance(l, "100001", dec("10.00"))

	_, err := l.Transfer(ctx, transferPosting("100001", "100002", dec("25.00")))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	ledgerImpl := l.(*inMemoryLedger)
	if !ledgerImpl.balances["100001"].Equal(dec("10.00")) || !ledgerImpl.balances["100002"].IsZero() {
		t.Fatalf("balances mutated after failed transfer")
	}
	if len(ledgerImpl.log) != 0 {
		t.Fatalf("expected empty log, got %d records", len(ledgerImpl.log))
	}
}

func TestInMemoryLedger_RejectsBadAmounts(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, "100001")
	l.CreateAccount(ctx, "100002")
	SeedBalance(l, "100001", dec("100.00"))

	for _, amount := range []string{"0", "-5.00", "1.005"} {
		if _, err := l.Transfer(ctx, transferPosting("100001", "100002", dec(amount))); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected invalid amount, got %v", amount, err)
		}
	}

	if _, err := l.Transfer(ctx, transferPosting("100001", "100001", dec("5.00"))); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected same account error, got %v", err)
	}
}

func TestInMemoryLedger_UnknownAccounts(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, "100001")
	SeedBalance(l, "100001", dec("100.00"))

	if _, err := l.Transfer(ctx, transferPosting("100001", "999999", dec("5.00"))); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := l.Balance(ctx, "999999"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentOverdraftSerializes(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, "100001")
	l.CreateAccount(ctx, "100002")
	SeedBalance(l, "100001", dec("100.00"))

	// 10 workers each try to move 60.00 out of a 100.00 balance; only one
	// can succeed without driving the balance negative.
	const workers = 10
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Transfer(ctx, transferPosting("100001", "100002", dec("60.00")))
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	var succeeded int
	for err := range errCh {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one success, got %d", succeeded)
	}

	ledgerImpl := l.(*inMemoryLedger)
	if ledgerImpl.balances["100001"].IsNegative() {
		t.Fatalf("sender balance went negative: %s", ledgerImpl.balances["100001"])
	}
}

func TestInMemoryLedger_DepositLogsDistinctKind(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, "100001")

	owner := uuid.NewString()
	res, err := l.Deposit(ctx, DepositPosting{Number: "100001", OwnerID: owner, OwnerName: "Jane Doe", Amount: dec("50.00")})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !res.Balance.Equal(dec("50.00")) {
		t.Fatalf("expected balance 50.00, got %s", res.Balance)
	}

	list, err := l.ListTransactions(ctx, owner, DirectionIncoming)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Kind != KindDeposit {
		t.Fatalf("expected one deposit record, got %+v", list)
	}
}

func TestInMemoryLedger_ListTransactionsFiltersDirection(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.CreateAccount(ctx, "100001")
	l.CreateAccount(ctx, "100002")
	SeedBalance(l, "100001", dec("100.00"))
	SeedBalance(l, "100002", dec("100.00"))

	alice := uuid.NewString()
	bob := uuid.NewString()

	for i := 0; i < 3; i++ {
		posting := TransferPosting{
			FromNumber: "100001", ToNumber: "100002",
			Amount: dec("1.00"), SenderID: alice, ReceiverID: bob,
			ReceiverName: "Bob", Description: fmt.Sprintf("tx %d", i),
		}
		if _, err := l.Transfer(ctx, posting); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	back := TransferPosting{
		FromNumber: "100002", ToNumber: "100001",
		Amount: dec("2.00"), SenderID: bob, ReceiverID: alice, ReceiverName: "Alice",
	}
	if _, err := l.Transfer(ctx, back); err != nil {
		t.Fatalf("transfer back: %v", err)
	}

	outgoing, _ := l.ListTransactions(ctx, alice, DirectionOutgoing)
	if len(outgoing) != 3 {
		t.Fatalf("expected 3 outgoing, got %d", len(outgoing))
	}
	incoming, _ := l.ListTransactions(ctx, alice, DirectionIncoming)
	if len(incoming) != 1 {
		t.Fatalf("expected 1 incoming, got %d", len(incoming))
	}
	all, _ := l.ListTransactions(ctx, alice, DirectionAll)
	if len(all) != 4 {
		t.Fatalf("expected 4 total, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("list not sorted newest first")
		}
	}
}
