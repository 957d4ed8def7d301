package statestore

import (
	"context"
	"fmt"
	"time"

	"shoplink-shopify-layer/internal/ports"

	"github.com/redis/go-redis/v9"
)

var _ ports.StateTracker = (*RedisTracker)(nil)

const stateKeyPrefix = "oauth:state:"

// RedisTracker tracks OAuth state nonces in Redis so single-use enforcement
// holds across replicas. Keys expire on their own, which bounds the window in
// which an abandoned install redirect can still be redeemed.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker builds a tracker from a Redis URL such as
// redis://localhost:6379/0.
func NewRedisTracker(url string, ttl time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisTracker{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (r *RedisTracker) Save(ctx context.Context, nonce string) error {
	if err := r.client.Set(ctx, stateKeyPrefix+nonce, "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state nonce: %w", err)
	}
	return nil
}

// Consume removes the nonce and reports whether it existed. GETDEL keeps the
// check-and-remove atomic, so two concurrent callbacks cannot both redeem the
// same state.
func (r *RedisTracker) Consume(ctx context.Context, nonce string) (bool, error) {
	val, err := r.client.GetDel(ctx, stateKeyPrefix+nonce).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume state nonce: %w", err)
	}
	return val != "", nil
}

func (r *RedisTracker) Close() error {
	return r.client.Close()
}
