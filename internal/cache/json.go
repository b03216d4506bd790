package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// JSONCache stores typed values in a Store as JSON with a fixed TTL.
type JSONCache[T any] struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewJSONCache wraps store. A nil clock uses time.Now.
func NewJSONCache[T any](store Store, ttl time.Duration, now func() time.Time) *JSONCache[T] {
	return &JSONCache[T]{store: store, ttl: ttl, now: clockOrNow(now)}
}

// Get returns the cached value for key and whether it was found.
func (c *JSONCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	e, err := c.store.Get(ctx, key)
	if err != nil || e == nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, true, nil
}

// Put stores v under key until now+ttl. query and merchant are recorded
// alongside for inspection.
func (c *JSONCache[T]) Put(ctx context.Context, key, query, merchant string, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	now := c.now()
	return c.store.Put(ctx, Entry{
		Key:       key,
		Query:     query,
		Merchant:  merchant,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
}
