package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-deck/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCacheAdapter stores serialized quizzes and listings in Redis.
// A single node, sentinel or cluster client all satisfy redis.UniversalClient.
type RedisCacheAdapter struct {
	client redis.UniversalClient
}

var _ domain.Cache = (*RedisCacheAdapter)(nil)

// NewRedisCacheAdapter wraps an already connected client.
func NewRedisCacheAdapter(client redis.UniversalClient) *RedisCacheAdapter {
	return &RedisCacheAdapter{client: client}
}

// Get maps redis.Nil to domain.ErrCacheMiss.
func (r *RedisCacheAdapter) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", domain.ErrCacheMiss
	case err != nil:
		return "", fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisCacheAdapter) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if expiration < 0 {
		return fmt.Errorf("redis SET %s: negative expiration %s", key, expiration)
	}
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Delete issues UNLINK; a missing key is not an error.
func (r *RedisCacheAdapter) Delete(ctx context.Context, key string) error {
	if err := r.client.Unlink(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis UNLINK %s: %w", key, err)
	}
	return nil
}

func (r *RedisCacheAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
