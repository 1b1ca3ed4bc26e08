package models

import "time"

// PaymentEvent is published to Kafka on every order lifecycle transition and
// wallet credit. EventID deduplicates replays on the consumer side.
type PaymentEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	Amount         int64     `json:"amount"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Event type constants
const (
	EventOrderCreated   = "ORDER_CREATED"
	EventOrderSuccess   = "ORDER_SUCCESS"
	EventOrderCancelled = "ORDER_CANCELLED"
	EventOrderExpired   = "ORDER_EXPIRED"
	EventWalletCredited = "WALLET_CREDITED"
)
