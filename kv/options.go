package kv

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for stores.
type storeConfig struct {
	redisClient *redis.Client
	namespace   string
	now         func() time.Time
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithNamespace prefixes every Redis key with ns. Keys returned by
// KeysByPrefix have the namespace stripped.
func WithNamespace(ns string) StoreOption {
	return func(c *storeConfig) {
		c.namespace = ns
	}
}

// WithClock overrides the clock the in-memory store uses for TTL expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}
