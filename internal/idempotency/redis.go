package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout = 5 * time.Second
	pendingValue   = "pending"
	keyPrefix      = "deposit:"
)

// ErrInFlight is returned by Begin while another request holds the same key.
var ErrInFlight = errors.New("idempotency: request with this key is in flight")

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Store keeps deposit idempotency keys in Redis.
// Key format: deposit:<profile_id>:<client key>. The value is "pending" while the
// deposit runs and the resulting balance once it committed.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Begin(ctx context.Context, key string) (string, bool, error) {
	reserved, err := s.client.SetNX(ctx, keyPrefix+key, pendingValue, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("reserve %s: %w", key, err)
	}
	if reserved {
		return "", false, nil
	}

	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET; the caller may simply retry
		return "", false, ErrInFlight
	case err != nil:
		return "", false, fmt.Errorf("read %s: %w", key, err)
	case value == pendingValue:
		return "", false, ErrInFlight
	}
	return value, true, nil
}

func (s *Store) Complete(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, keyPrefix+key, value, s.ttl).Err()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
