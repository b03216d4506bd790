package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is a bounded in-process store; the least recently used
// entry is evicted when full.
type MemoryStore struct {
	entries *lru.Cache[string, Entry]
	now     func() time.Time
}

// NewMemoryStore creates a store holding at most size entries. A nil
// clock uses time.Now.
func NewMemoryStore(size int, now func() time.Time) (*MemoryStore, error) {
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryStore{entries: entries, now: clockOrNow(now)}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, nil
	}
	if e.Expired(m.now()) {
		m.entries.Remove(key)
		return nil, nil
	}
	e.Payload = append([]byte(nil), e.Payload...)
	return &e, nil
}

func (m *MemoryStore) Put(_ context.Context, e Entry) error {
	e.Payload = append([]byte(nil), e.Payload...)
	m.entries.Add(e.Key, e)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context) (int64, error) {
	now := m.now()
	var removed int64
	for _, key := range m.entries.Keys() {
		if e, ok := m.entries.Peek(key); ok && e.Expired(now) {
			if m.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int { return m.entries.Len() }

func (m *MemoryStore) Close() error {
	m.entries.Purge()
	return nil
}
