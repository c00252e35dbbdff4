package kv

import (
	"time"

	"github.com/creastat/chatstore"
)

// StoreType represents the type of key-value store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// NewStore creates a new Store based on the given type.
// Supports "memory" and "redis" driver types.
// For Redis, requires WithRedisClient option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}

	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		now := config.now
		if now == nil {
			now = time.Now
		}
		return NewMemoryStore(now), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, chatstore.ErrInvalidConfig
		}
		return NewRedisStore(config.redisClient, config.namespace), nil

	default:
		return nil, chatstore.ErrInvalidStoreType
	}
}
