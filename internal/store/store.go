package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrKeyNotFound = errors.New("key not found in store")

	// ErrTxnConflict means the optimistic transaction kept losing races and
	// exhausted its retry budget.
	ErrTxnConflict = errors.New("store transaction conflict")
)

// UpdateFunc transforms the current raw value of a key inside a transaction.
// current is nil when the key is absent; returning nil deletes the key.
// Returning an error aborts the transaction without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is a key-value database whose single-key atomic read-modify-write
// (Txn) is the only cross-process synchronization primitive in the system.
// Values are JSON documents; the two set operations back secondary indexes.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Txn atomically applies fn to the value under key and returns the
	// committed bytes. Callers must inspect the result: fn returning the
	// current value unchanged is how a conditional update signals refusal.
	Txn(ctx context.Context, key string, fn UpdateFunc) ([]byte, error)

	SetAdd(ctx context.Context, key string, members ...string) error
	SetRemove(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
}
