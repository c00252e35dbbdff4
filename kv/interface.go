package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNil is returned by Get when the key does not exist or has expired.
var ErrNil = errors.New("kv: key does not exist")

// Store is the time-indexed key-value contract the session store and the
// analytics engine are built on. Implementations must be safe for
// concurrent use; HashIncrement and the list operations are atomic.
type Store interface {
	// Set stores value under key. A ttl of zero means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key, or ErrNil.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// CompareAndSwap replaces the value under key with next only if the
	// current value equals prev. A nil prev requires the key to be absent.
	// It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error)

	// HashIncrement atomically adds amount to field of the hash at key and
	// returns the new value.
	HashIncrement(ctx context.Context, key, field string, amount int64) (int64, error)

	// HashGetAll returns every field of the hash at key. A missing key
	// yields an empty map.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// ListPush pushes values onto the head of the list at key, so the most
	// recent value is at index 0.
	ListPush(ctx context.Context, key string, values ...string) error

	// ListTrim keeps only the first maxLen elements of the list at key.
	// A non-positive maxLen is a no-op.
	ListTrim(ctx context.Context, key string, maxLen int64) error

	// ListRange returns the elements between start and stop inclusive.
	// Negative indexes count from the tail, as in Redis LRANGE.
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// KeysByPrefix returns every live key starting with prefix.
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
