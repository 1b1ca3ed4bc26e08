package models

import "time"

// Wallet holds a per-user running balance plus the append-only transaction
// history that produced it. Invariant: Balance equals the sum of signed
// amounts in History, and each orderId appears at most once.
type Wallet struct {
	UserID    string        `json:"userId"`
	Balance   int64         `json:"balance"` // minor units (paise)
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	History   []Transaction `json:"history"`
}

// HasOrder reports whether the history already carries an entry for orderID.
func (w *Wallet) HasOrder(orderID string) bool {
	for _, txn := range w.History {
		if txn.OrderID == orderID {
			return true
		}
	}
	return false
}

// Transaction is immutable once appended to a wallet's history.
type Transaction struct {
	OrderID         string    `json:"orderId"`
	Amount          int64     `json:"amount"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	PreviousBalance int64     `json:"previousBalance"`
	NewBalance      int64     `json:"newBalance"`
}

// Transaction type constants
const (
	TransactionTypeCredit  = "CREDIT"
	TransactionTypeDebit   = "DEBIT"
	TransactionTypeRefund  = "REFUND"
	TransactionTypeBonus   = "BONUS"
	TransactionTypePenalty = "PENALTY"
)
