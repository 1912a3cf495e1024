package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache holds serialized quizzes and listings in front of the quiz repository.
// Values are opaque strings; callers own the encoding.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// Set with expiration 0 keeps the value until evicted.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	// Delete succeeds for missing keys.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
