package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// Response is a stored HTTP response replayed for a repeated key.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store records which idempotency keys are in flight or finished.
type Store interface {
	// Reserve claims key. When the key is already claimed it returns the
	// stored response, or nil while the first request is still running.
	Reserve(ctx context.Context, key string) (reserved bool, stored *Response, err error)
	Save(ctx context.Context, key string, resp Response) error
	Release(ctx context.Context, key string) error
}

// RedisStore keeps keys in Redis with a fixed TTL.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "idem:payments:"}
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (bool, *Response, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, pendingMarker, s.ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return true, nil, nil
	}

	raw, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as still running.
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if raw == pendingMarker {
		return false, nil, nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return false, nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return false, &resp, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+key, b, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// MemoryStore is a process-local Store for single-instance and test setups.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Response
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Response)}
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (bool, *Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp, ok := s.entries[key]; ok {
		return false, resp, nil
	}
	s.entries[key] = nil
	return true, nil, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &resp
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
