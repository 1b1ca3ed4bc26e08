package models

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrLockBusy is a refusal, not a fault: another actor holds the lock and
	// the caller should treat the resource as busy and retry later.
	ErrLockBusy = errors.New("lock is held by another operation")

	ErrUnauthorized        = errors.New("user does not own this order")
	ErrOrderExpired        = errors.New("order has expired")
	ErrAmountMismatch      = errors.New("submitted amount does not match order amount")
	ErrDestinationMismatch = errors.New("submitted destination does not match configured payee")
	ErrDuplicateCredit     = errors.New("order already credited to wallet")
	ErrWalletLimitExceeded = errors.New("wallet balance limit exceeded")
)

// ValidationError marks malformed or out-of-range input. No side effects have
// happened when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StateConflictError reports an illegal order transition, e.g. verifying an
// order that already reached a terminal status.
type StateConflictError struct {
	OrderID string
	Status  string
	Op      string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s order %s in status %s", e.Op, e.OrderID, e.Status)
}

// CreditError wraps a ledger failure raised after the order was matched. The
// order is left PENDING with the transaction reference preserved so the
// verification can be retried.
type CreditError struct {
	OrderID string
	UserID  string
	Err     error
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("failed to credit wallet %s for order %s: %v", e.UserID, e.OrderID, e.Err)
}

func (e *CreditError) Unwrap() error { return e.Err }
