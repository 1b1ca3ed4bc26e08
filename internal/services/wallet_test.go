package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-service/internal/clock"
	"payment-service/internal/models"
	"payment-service/internal/store"
)

func newWalletService(maxBalance int64) (*WalletService, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	return NewWalletService(store.NewMemoryStore(), clk, maxBalance), clk
}

func checkInvariant(t *testing.T, w *models.Wallet) {
	t.Helper()
	var sum int64
	for _, txn := range w.History {
		sum += txn.Amount
	}
	if w.Balance != sum {
		t.Fatalf("invariant broken: balance %d != sum(history) %d", w.Balance, sum)
	}
}

func TestWalletService_CreditCreatesWalletLazily(t *testing.T) {
	ctx := context.Background()
	s, clk := newWalletService(0)

	newBalance, err := s.Credit(ctx, "u-1", 10000, "o-1")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if newBalance != 10000 {
		t.Fatalf("new balance: got %d, want 10000", newBalance)
	}

	wallet, err := s.GetWallet(ctx, "u-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	checkInvariant(t, wallet)

	if len(wallet.History) != 1 {
		t.Fatalf("history: got %d entries, want 1", len(wallet.History))
	}
	txn := wallet.History[0]
	if txn.OrderID != "o-1" || txn.Type != models.TransactionTypeCredit {
		t.Fatalf("transaction: got %+v", txn)
	}
	if txn.PreviousBalance != 0 || txn.NewBalance != 10000 {
		t.Fatalf("transaction balances: got prev=%d new=%d", txn.PreviousBalance, txn.NewBalance)
	}
	if !txn.Timestamp.Equal(clk.Now()) {
		t.Fatalf("timestamp: got %v, want %v", txn.Timestamp, clk.Now())
	}
}

func TestWalletService_CreditAccumulates(t *testing.T) {
	ctx := context.Background()
	s, _ := newWalletService(0)

	if _, err := s.Credit(ctx, "u-1", 10000, "o-1"); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	newBalance, err := s.Credit(ctx, "u-1", 2500, "o-2")
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if newBalance != 12500 {
		t.Fatalf("new balance: got %d, want 12500", newBalance)
	}

	wallet, err := s.GetWallet(ctx, "u-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	checkInvariant(t, wallet)
	if wallet.History[1].PreviousBalance != 10000 {
		t.Fatalf("second txn previousBalance: got %d, want 10000", wallet.History[1].PreviousBalance)
	}
}

func TestWalletService_DuplicateOrderRefused(t *testing.T) {
	ctx := context.Background()
	s, _ := newWalletService(0)

	if _, err := s.Credit(ctx, "u-1", 10000, "o-1"); err != nil {
		t.Fatalf("first credit: %v", err)
	}

	_, err := s.Credit(ctx, "u-1", 10000, "o-1")
	if !errors.Is(err, models.ErrDuplicateCredit) {
		t.Fatalf("duplicate credit: got %v, want ErrDuplicateCredit", err)
	}

	wallet, err := s.GetWallet(ctx, "u-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	checkInvariant(t, wallet)
	if wallet.Balance != 10000 || len(wallet.History) != 1 {
		t.Fatalf("wallet changed by refused credit: balance=%d history=%d", wallet.Balance, len(wallet.History))
	}
}

func TestWalletService_BalanceCap(t *testing.T) {
	ctx := context.Background()
	s, _ := newWalletService(15000)

	if _, err := s.Credit(ctx, "u-1", 10000, "o-1"); err != nil {
		t.Fatalf("first credit: %v", err)
	}

	_, err := s.Credit(ctx, "u-1", 10000, "o-2")
	if !errors.Is(err, models.ErrWalletLimitExceeded) {
		t.Fatalf("over-cap credit: got %v, want ErrWalletLimitExceeded", err)
	}

	wallet, err := s.GetWallet(ctx, "u-1")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	checkInvariant(t, wallet)
	if wallet.Balance != 10000 {
		t.Fatalf("balance after refused credit: got %d, want 10000", wallet.Balance)
	}
}

func TestWalletService_CreditValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newWalletService(0)

	tests := []struct {
		name    string
		amount  int64
		orderID string
	}{
		{"zero amount", 0, "o-1"},
		{"negative amount", -100, "o-1"},
		{"missing order", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Credit(ctx, "u-1", tt.amount, tt.orderID)
			var validationErr *models.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestWalletService_GetWalletDefaultsEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := newWalletService(0)

	wallet, err := s.GetWallet(ctx, "nobody")
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.UserID != "nobody" || wallet.Balance != 0 || len(wallet.History) != 0 {
		t.Fatalf("empty wallet: got %+v", wallet)
	}
}
