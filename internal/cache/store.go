// Package cache stores per-merchant search results with a TTL.
package cache

import (
	"context"
	"time"
)

// Entry is one cached payload.
type Entry struct {
	Key       string
	Query     string
	Merchant  string
	Payload   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether e is past its expiry at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is a keyed TTL store. Get returns nil for absent or expired keys;
// expiry is judged at read time. Put replaces any existing entry.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, e Entry) error
	Sweep(ctx context.Context) (int64, error)
	Close() error
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
