package kv

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// errSwapMismatch aborts a WATCH transaction whose precondition failed.
var errSwapMismatch = errors.New("kv: compare-and-swap precondition failed")

// RedisStore implements Store using Redis.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore creates a new Redis-based store. Every key is prefixed
// with namespace.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
	}
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// CompareAndSwap implements Store.
// Implements optimistic locking using Redis WATCH/MULTI/EXEC.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error) {
	k := s.key(key)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		if prev == nil {
			if exists {
				return errSwapMismatch
			}
		} else if !exists || !bytes.Equal(cur, prev) {
			return errSwapMismatch
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, ttl)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errSwapMismatch), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}

// HashIncrement implements Store.
func (s *RedisStore) HashIncrement(ctx context.Context, key, field string, amount int64) (int64, error) {
	return s.client.HIncrBy(ctx, s.key(key), field, amount).Result()
}

// HashGetAll implements Store.
func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, s.key(key)).Result()
}

// ListPush implements Store.
func (s *RedisStore) ListPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.client.LPush(ctx, s.key(key), args...).Err()
}

// ListTrim implements Store.
func (s *RedisStore) ListTrim(ctx context.Context, key string, maxLen int64) error {
	if maxLen <= 0 {
		return nil
	}
	return s.client.LTrim(ctx, s.key(key), 0, maxLen-1).Err()
}

// ListRange implements Store.
func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, s.key(key), start, stop).Result()
}

// KeysByPrefix implements Store.
// Walks the keyspace with SCAN rather than KEYS so large keyspaces do not
// block the server.
func (s *RedisStore) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(s.key(prefix)) + "*"

	var raw []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		raw = append(raw, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return uniqueKeys(raw, s.namespace), nil
}

// uniqueKeys strips namespace from raw and drops repeats. SCAN may return
// a key more than once while the keyspace is rehashed.
func uniqueKeys(raw []string, namespace string) []string {
	seen := make(map[string]struct{}, len(raw))
	for _, k := range raw {
		seen[strings.TrimPrefix(k, namespace)] = struct{}{}
	}
	return sortedKeys(seen)
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the namespaced Redis key.
func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

// escapeGlob escapes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*RedisStore)(nil)
