package session

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultExpiry is the idle time after which a session is expired.
	DefaultExpiry = 24 * time.Hour
	// DefaultKeyPrefix namespaces every key the session store writes.
	DefaultKeyPrefix = "chat:"
	// DefaultMaxRetries bounds optimistic-lock retries per mutation.
	DefaultMaxRetries = 5
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for session stores.
type storeConfig struct {
	expiry     time.Duration
	recordTTL  time.Duration
	keyPrefix  string
	maxRetries int
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
}

// WithExpiry sets the idle threshold after which sessions are expired.
func WithExpiry(d time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.expiry = d
	}
}

// WithRecordTTL sets a backing-store TTL on session records and index
// entries. Zero (the default) leaves removal to the sweeper.
func WithRecordTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.recordTTL = ttl
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.keyPrefix = prefix
	}
}

// WithMaxRetries sets how many times a mutation is retried after losing
// an optimistic-lock race.
func WithMaxRetries(n int) StoreOption {
	return func(c *storeConfig) {
		c.maxRetries = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(fn func() string) StoreOption {
	return func(c *storeConfig) {
		c.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(c *storeConfig) {
		c.logger = logger
	}
}
