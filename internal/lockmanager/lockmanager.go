package lockmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"payment-service/internal/clock"
	"payment-service/internal/models"
	"payment-service/internal/store"

	"github.com/google/uuid"
)

const lockKeyPrefix = "lock:"

// Manager provides named mutual-exclusion locks backed by the store's atomic
// read-modify-write. The authoritative decision is always the store
// transaction; the in-process mirror only short-circuits acquisitions that
// are obviously contended.
type Manager struct {
	store      store.Store
	clock      clock.Clock
	retryDelay time.Duration

	mu   sync.Mutex
	held map[string]localLock
}

type localLock struct {
	token     string
	expiresAt time.Time
}

func New(st store.Store, clk clock.Clock, retryDelay time.Duration) *Manager {
	return &Manager{
		store:      st,
		clock:      clk,
		retryDelay: retryDelay,
		held:       make(map[string]localLock),
	}
}

// Acquire claims the lock under key for timeout and returns the owning token.
// Exhausting maxAttempts returns models.ErrLockBusy (a refusal, not a fault);
// store errors are returned as faults.
func (m *Manager) Acquire(ctx context.Context, key string, timeout time.Duration, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !m.locallyContended(key) {
			token, ok, err := m.tryAcquire(ctx, key, timeout)
			if err != nil {
				return "", err
			}
			if ok {
				return token, nil
			}
		}

		if attempt == maxAttempts {
			break
		}

		// Linear backoff: attempt * retryDelay
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * m.retryDelay):
		}
	}

	return "", models.ErrLockBusy
}

// tryAcquire performs the single atomic attempt: install a fresh token if the
// slot is empty or the stored lock expired, otherwise leave it untouched. The
// caller owns the lock only if the committed token equals the generated one.
func (m *Manager) tryAcquire(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	now := m.clock.Now()
	candidate := models.Lock{
		LockKey:    key,
		Token:      uuid.New().String(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(timeout),
		TimeoutMs:  timeout.Milliseconds(),
	}

	committed, err := m.store.Txn(ctx, lockKeyPrefix+key, func(current []byte) ([]byte, error) {
		if len(current) > 0 {
			var existing models.Lock
			if err := json.Unmarshal(current, &existing); err == nil && !existing.Expired(now) {
				// Still held, leave the record untouched
				return current, nil
			}
		}
		return json.Marshal(candidate)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	var winner models.Lock
	if err := json.Unmarshal(committed, &winner); err != nil {
		return "", false, fmt.Errorf("corrupt lock record for %s: %w", key, err)
	}

	m.remember(key, winner)
	return candidate.Token, winner.Token == candidate.Token, nil
}

// Release clears the lock if the stored token matches. An empty token
// force-clears regardless of owner (administrative release). It never clears
// a record owned by a different, still-live token.
func (m *Manager) Release(ctx context.Context, key, token string) (bool, error) {
	released := false

	_, err := m.store.Txn(ctx, lockKeyPrefix+key, func(current []byte) ([]byte, error) {
		if len(current) == 0 {
			return nil, nil
		}

		var existing models.Lock
		if err := json.Unmarshal(current, &existing); err != nil {
			// Unreadable record: clear it
			released = true
			return nil, nil
		}

		if token != "" && existing.Token != token && !existing.Expired(m.clock.Now()) {
			return current, nil
		}

		released = true
		return nil, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", key, err)
	}

	if released {
		m.forget(key)
	}
	return released, nil
}

// IsHeld reports whether a live lock exists under key. An expired record is
// lazily reaped by issuing a release.
func (m *Manager) IsHeld(ctx context.Context, key string) (bool, error) {
	var existing models.Lock
	err := m.store.Get(ctx, lockKeyPrefix+key, &existing)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	if existing.Expired(m.clock.Now()) {
		if _, err := m.Release(ctx, key, existing.Token); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

func (m *Manager) locallyContended(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.held[key]
	if !ok {
		return false
	}
	if !m.clock.Now().Before(cached.expiresAt) {
		delete(m.held, key)
		return false
	}
	return true
}

func (m *Manager) remember(key string, lock models.Lock) {
	m.mu.Lock()
	m.held[key] = localLock{token: lock.Token, expiresAt: lock.ExpiresAt}
	m.mu.Unlock()
}

func (m *Manager) forget(key string) {
	m.mu.Lock()
	delete(m.held, key)
	m.mu.Unlock()
}
