package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatstore"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, "test:")

	t.Cleanup(func() {
		_ = store.Close()
	})

	return mr, store
}

// drivers returns every Store implementation under test.
func drivers(t *testing.T) map[string]Store {
	_, rs := setupMiniredis(t)
	return map[string]Store{
		"memory": NewMemoryStore(time.Now),
		"redis":  rs,
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))

			v, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			require.NoError(t, s.Delete(ctx, "a", "missing"))

			_, err = s.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNil)
		})
	}
}

func TestStore_CompareAndSwap(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := s.CompareAndSwap(ctx, "k", nil, []byte("v1"), 0)
			require.NoError(t, err)
			assert.True(t, ok, "create on absent key")

			ok, err = s.CompareAndSwap(ctx, "k", nil, []byte("other"), 0)
			require.NoError(t, err)
			assert.False(t, ok, "create must fail when key exists")

			ok, err = s.CompareAndSwap(ctx, "k", []byte("stale"), []byte("v2"), 0)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"), 0)
			require.NoError(t, err)
			assert.True(t, ok)

			v, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), v)
		})
	}
}

func TestStore_HashIncrement(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := s.HashGetAll(ctx, "h")
			require.NoError(t, err)
			assert.Empty(t, empty)

			for i := 0; i < 3; i++ {
				_, err := s.HashIncrement(ctx, "h", "total", 1)
				require.NoError(t, err)
			}
			n, err := s.HashIncrement(ctx, "h", "other", 5)
			require.NoError(t, err)
			assert.Equal(t, int64(5), n)

			all, err := s.HashGetAll(ctx, "h")
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"total": "3", "other": "5"}, all)
		})
	}
}

func TestStore_ListPushTrimRange(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, v := range []string{"1", "2", "3", "4", "5"} {
				require.NoError(t, s.ListPush(ctx, "l", v))
			}
			require.NoError(t, s.ListTrim(ctx, "l", 3))

			got, err := s.ListRange(ctx, "l", 0, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"5", "4", "3"}, got)

			got, err = s.ListRange(ctx, "l", -2, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"4", "3"}, got)

			got, err = s.ListRange(ctx, "missing", 0, -1)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_KeysByPrefix(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Set(ctx, "session:1", []byte("x"), 0))
			require.NoError(t, s.Set(ctx, "session:2", []byte("x"), 0))
			require.NoError(t, s.Set(ctx, "event:1", []byte("x"), 0))
			_, err := s.HashIncrement(ctx, "session:hash", "f", 1)
			require.NoError(t, err)

			keys, err := s.KeysByPrefix(ctx, "session:")
			require.NoError(t, err)
			assert.Equal(t, []string{"session:1", "session:2", "session:hash"}, keys)
		})
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, s.Set(ctx, "forever", []byte("y"), 0))

	now = now.Add(2 * time.Minute)

	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNil)

	keys, err := s.KeysByPrefix(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, keys)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr, s := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("x"), time.Minute))
	assert.True(t, mr.Exists("test:short"))

	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNil)
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore(nil)
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "a", nil, 0)
	assert.ErrorIs(t, err, chatstore.ErrStoreClosed)
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreTypeMemory)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, chatstore.ErrInvalidConfig)

	_, err = NewStore("etcd")
	assert.ErrorIs(t, err, chatstore.ErrInvalidStoreType)
}

func TestUniqueKeys(t *testing.T) {
	raw := []string{"ns:event:b", "ns:event:a", "ns:event:b", "ns:event:a", "ns:event:c"}
	assert.Equal(t, []string{"event:a", "event:b", "event:c"}, uniqueKeys(raw, "ns:"))
	assert.Empty(t, uniqueKeys(nil, "ns:"))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}
