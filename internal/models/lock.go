package models

import (
	"encoding/json"
	"time"
)

// Lock is a time-bounded mutual-exclusion claim on a named resource. At most
// one live (non-expired) token exists per key; a lock past ExpiresAt is
// abandoned and may be seized by a new acquirer.
type Lock struct {
	LockKey    string    `json:"lockKey"`
	Token      string    `json:"token"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	TimeoutMs  int64     `json:"timeoutMs"`
}

func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// IdempotencyRecord memoizes the result of an operation under a
// caller-supplied key until ExpiresAt, after which the operation may run
// again and the record is eligible for cleanup.
type IdempotencyRecord struct {
	Key       string          `json:"key"`
	Result    json.RawMessage `json:"result"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}
