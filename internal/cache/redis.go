package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "closeshave:cache:"

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore keeps entries as JSON values with native key expiry.
type RedisStore struct {
	client RedisClient
	now    func() time.Time
}

type redisEntry struct {
	Query     string          `json:"query"`
	Merchant  string          `json:"merchant"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStoreWithClient(rdb, nil), nil
}

// NewRedisStoreWithClient wraps an existing client. A nil clock uses time.Now.
func NewRedisStoreWithClient(client RedisClient, now func() time.Time) *RedisStore {
	return &RedisStore{client: client, now: clockOrNow(now)}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var re redisEntry
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	e := &Entry{
		Key:       key,
		Query:     re.Query,
		Merchant:  re.Merchant,
		Payload:   []byte(re.Payload),
		CreatedAt: re.CreatedAt,
		ExpiresAt: re.ExpiresAt,
	}
	if e.Expired(s.now()) {
		return nil, nil
	}
	return e, nil
}

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(redisEntry{
		Query:     e.Query,
		Merchant:  e.Merchant,
		Payload:   json.RawMessage(e.Payload),
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+e.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Sweep is a no-op: redis expires keys itself.
func (s *RedisStore) Sweep(context.Context) (int64, error) { return 0, nil }

func (s *RedisStore) Close() error { return s.client.Close() }
