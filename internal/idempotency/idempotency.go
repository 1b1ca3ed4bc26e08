package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"payment-service/internal/clock"
	"payment-service/internal/models"
	"payment-service/internal/store"
)

const (
	recordKeyPrefix = "idem:"
	keyIndex        = "idem:keys"
)

// Operation produces the result to memoize. It runs at most once per key
// within the TTL window.
type Operation func(ctx context.Context) (interface{}, error)

// Cache memoizes operation results under caller-supplied keys so retried
// requests return the original result instead of re-executing side effects.
// The durable store is authoritative; the in-process map only saves a
// round-trip.
type Cache struct {
	store store.Store
	clock clock.Clock
	ttl   time.Duration

	mu    sync.Mutex
	local map[string]models.IdempotencyRecord
}

func New(st store.Store, clk clock.Clock, ttl time.Duration) *Cache {
	return &Cache{
		store: st,
		clock: clk,
		ttl:   ttl,
		local: make(map[string]models.IdempotencyRecord),
	}
}

// Do returns the memoized result for key if a non-expired record exists,
// otherwise runs op, persists its result and returns it. The second return
// value reports whether the result came from the cache. Failed operations are
// not memoized, so a retry after an error re-executes.
func (c *Cache) Do(ctx context.Context, key string, op Operation) (json.RawMessage, bool, error) {
	now := c.clock.Now()

	if rec, ok := c.lookupLocal(key, now); ok {
		return rec.Result, true, nil
	}

	var rec models.IdempotencyRecord
	err := c.store.Get(ctx, recordKeyPrefix+key, &rec)
	if err == nil && now.Before(rec.ExpiresAt) {
		c.rememberLocal(rec)
		return rec.Result, true, nil
	}
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("failed to look up idempotency key %s: %w", key, err)
	}

	result, err := op(ctx)
	if err != nil {
		return nil, false, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal result for key %s: %w", key, err)
	}

	rec = models.IdempotencyRecord{
		Key:       key,
		Result:    raw,
		StoredAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.store.Set(ctx, recordKeyPrefix+key, rec, c.ttl); err != nil {
		return nil, false, fmt.Errorf("failed to persist idempotency record %s: %w", key, err)
	}
	if err := c.store.SetAdd(ctx, keyIndex, key); err != nil {
		log.Printf("warning: failed to index idempotency key %s: %v", key, err)
	}
	c.rememberLocal(rec)

	return raw, false, nil
}

// Sweep deletes store records whose expiry has passed and returns how many
// were removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	keys, err := c.store.SetMembers(ctx, keyIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to list idempotency keys: %w", err)
	}

	now := c.clock.Now()
	removed := 0

	for _, key := range keys {
		var rec models.IdempotencyRecord
		err := c.store.Get(ctx, recordKeyPrefix+key, &rec)
		if errors.Is(err, store.ErrKeyNotFound) {
			// Record already gone (store TTL), drop the index entry
			c.dropIndex(ctx, key)
			continue
		}
		if err != nil {
			return removed, err
		}
		if now.Before(rec.ExpiresAt) {
			continue
		}

		if err := c.store.Delete(ctx, recordKeyPrefix+key); err != nil {
			return removed, err
		}
		c.dropIndex(ctx, key)
		removed++
	}

	return removed, nil
}

func (c *Cache) dropIndex(ctx context.Context, key string) {
	if err := c.store.SetRemove(ctx, keyIndex, key); err != nil {
		log.Printf("warning: failed to unindex idempotency key %s: %v", key, err)
	}
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
}

func (c *Cache) lookupLocal(key string, now time.Time) (models.IdempotencyRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.local[key]
	if !ok {
		return models.IdempotencyRecord{}, false
	}
	if !now.Before(rec.ExpiresAt) {
		delete(c.local, key)
		return models.IdempotencyRecord{}, false
	}
	return rec, true
}

func (c *Cache) rememberLocal(rec models.IdempotencyRecord) {
	c.mu.Lock()
	c.local[rec.Key] = rec
	c.mu.Unlock()
}
