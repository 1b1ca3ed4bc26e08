package models

import "time"

// Order is a time-boxed request to pay a fixed amount towards the configured
// UPI destination. Status only ever moves PENDING -> SUCCESS/CANCELLED/EXPIRED;
// the three terminal states admit no further transition.
type Order struct {
	OrderID        string     `json:"orderId"`
	UserID         string     `json:"userId"`
	UserPhone      string     `json:"userPhone,omitempty"`
	UserName       string     `json:"userName,omitempty"`
	Amount         int64      `json:"amount"` // minor units (paise)
	DestinationID  string     `json:"destinationId"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`
	CancelledBy    string     `json:"cancelledBy,omitempty"`
	TransactionRef string     `json:"transactionRef,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
}

// Status constants
const (
	OrderStatusPending   = "PENDING"
	OrderStatusSuccess   = "SUCCESS"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusExpired   = "EXPIRED"
)

// Terminal reports whether the order reached a final status.
func (o *Order) Terminal() bool {
	return o.Status != OrderStatusPending
}

// Expired reports whether a still-pending order has outlived its window.
func (o *Order) Expired(now time.Time) bool {
	return o.Status == OrderStatusPending && !now.Before(o.ExpiresAt)
}

type CreateOrderRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	UserID    string `json:"userId" validate:"required"`
	UserPhone string `json:"userPhone" validate:"omitempty,numeric,len=10"`
	UserName  string `json:"userName" validate:"omitempty,max=100"`
}

type CancelOrderRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type VerifyPaymentRequest struct {
	OrderID       string `json:"orderId" validate:"required,uuid4"`
	TransactionID string `json:"transactionId" validate:"required,min=8"`
	DestinationID string `json:"destinationId" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	UserID        string `json:"userId" validate:"required"`
}

type VerifyPaymentResponse struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	NewBalance int64  `json:"newBalance"`
}
