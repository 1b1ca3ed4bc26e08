package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payment-service/internal/clock"
	"payment-service/internal/models"
	"payment-service/internal/store"
)

const walletKeyPrefix = "wallet:"

// WalletService maintains per-user balances and their append-only transaction
// histories. Every mutation goes through a single store transaction on the
// wallet key, so balance updates are serialized per user regardless of any
// lock the caller holds.
type WalletService struct {
	store      store.Store
	clock      clock.Clock
	maxBalance int64
}

func NewWalletService(st store.Store, clk clock.Clock, maxBalance int64) *WalletService {
	return &WalletService{
		store:      st,
		clock:      clk,
		maxBalance: maxBalance,
	}
}

func walletKey(userID string) string {
	return walletKeyPrefix + userID
}

// Credit applies one order-linked credit to the user's wallet and returns the
// new balance. The balance write and the appended history entry commit in the
// same transaction; a second credit for the same orderId is refused with
// models.ErrDuplicateCredit.
func (s *WalletService) Credit(ctx context.Context, userID string, amount int64, orderID string) (int64, error) {
	if amount <= 0 {
		return 0, &models.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if orderID == "" {
		return 0, &models.ValidationError{Field: "orderId", Reason: "required"}
	}

	var newBalance int64

	_, err := s.store.Txn(ctx, walletKey(userID), func(current []byte) ([]byte, error) {
		now := s.clock.Now()

		// Wallets are created lazily on first credit
		wallet := models.Wallet{UserID: userID, CreatedAt: now}
		if len(current) > 0 {
			if err := json.Unmarshal(current, &wallet); err != nil {
				return nil, fmt.Errorf("failed to unmarshal wallet %s: %w", userID, err)
			}
		}

		if wallet.HasOrder(orderID) {
			return nil, models.ErrDuplicateCredit
		}
		if s.maxBalance > 0 && wallet.Balance+amount > s.maxBalance {
			return nil, models.ErrWalletLimitExceeded
		}

		txn := models.Transaction{
			OrderID:         orderID,
			Amount:          amount,
			Type:            models.TransactionTypeCredit,
			Timestamp:       now,
			PreviousBalance: wallet.Balance,
			NewBalance:      wallet.Balance + amount,
		}

		wallet.Balance += amount
		wallet.UpdatedAt = now
		wallet.History = append(wallet.History, txn)

		newBalance = wallet.Balance
		return json.Marshal(wallet)
	})
	if err != nil {
		return 0, err
	}

	return newBalance, nil
}

// GetWallet returns the stored wallet, or an empty wallet when the user has
// never been credited.
func (s *WalletService) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.store.Get(ctx, walletKey(userID), &wallet)
	if errors.Is(err, store.ErrKeyNotFound) {
		return &models.Wallet{UserID: userID, History: []models.Transaction{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %s: %w", userID, err)
	}
	return &wallet, nil
}
