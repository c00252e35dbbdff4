package kv

import (
	"bytes"
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creastat/chatstore"
)

// MemoryStore implements Store using in-memory maps guarded by a single
// mutex. Expired values are dropped lazily on access.
type MemoryStore struct {
	mu     sync.Mutex
	now    func() time.Time
	values map[string]memoryValue
	hashes map[string]map[string]int64
	lists  map[string][]string
	closed bool
}

type memoryValue struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store using now as its clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:    now,
		values: make(map[string]memoryValue),
		hashes: make(map[string]map[string]int64),
		lists:  make(map[string][]string),
	}
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chatstore.ErrStoreClosed
	}
	s.setLocked(key, value, ttl)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, chatstore.ErrStoreClosed
	}
	v, ok := s.liveValueLocked(key)
	if !ok {
		return nil, ErrNil
	}
	return bytes.Clone(v.data), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chatstore.ErrStoreClosed
	}
	for _, key := range keys {
		delete(s.values, key)
		delete(s.hashes, key)
		delete(s.lists, key)
	}
	return nil
}

// CompareAndSwap implements Store.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, chatstore.ErrStoreClosed
	}

	cur, exists := s.liveValueLocked(key)
	if prev == nil {
		if exists {
			return false, nil
		}
	} else if !exists || !bytes.Equal(cur.data, prev) {
		return false, nil
	}

	s.setLocked(key, next, ttl)
	return true, nil
}

// HashIncrement implements Store.
func (s *MemoryStore) HashIncrement(ctx context.Context, key, field string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, chatstore.ErrStoreClosed
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]int64)
		s.hashes[key] = h
	}
	h[field] += amount
	return h[field], nil
}

// HashGetAll implements Store.
func (s *MemoryStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, chatstore.ErrStoreClosed
	}
	out := make(map[string]string, len(s.hashes[key]))
	for field, v := range s.hashes[key] {
		out[field] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

// ListPush implements Store.
func (s *MemoryStore) ListPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chatstore.ErrStoreClosed
	}
	list := s.lists[key]
	head := make([]string, 0, len(values)+len(list))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, values[i])
	}
	s.lists[key] = append(head, list...)
	return nil
}

// ListTrim implements Store.
func (s *MemoryStore) ListTrim(ctx context.Context, key string, maxLen int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return chatstore.ErrStoreClosed
	}
	if maxLen <= 0 {
		return nil
	}
	if list := s.lists[key]; int64(len(list)) > maxLen {
		s.lists[key] = list[:maxLen:maxLen]
	}
	return nil
}

// ListRange implements Store.
func (s *MemoryStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, chatstore.ErrStoreClosed
	}
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start = max(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// KeysByPrefix implements Store.
func (s *MemoryStore) KeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, chatstore.ErrStoreClosed
	}

	seen := make(map[string]struct{})
	for key := range s.values {
		if _, ok := s.liveValueLocked(key); ok && strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
		}
	}
	for key := range s.hashes {
		if strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
		}
	}
	for key := range s.lists {
		if strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
		}
	}

	return sortedKeys(seen), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.values = nil
	s.hashes = nil
	s.lists = nil
	return nil
}

func (s *MemoryStore) setLocked(key string, value []byte, ttl time.Duration) {
	v := memoryValue{data: bytes.Clone(value)}
	if ttl > 0 {
		v.expiresAt = s.now().Add(ttl)
	}
	s.values[key] = v
}

// liveValueLocked returns the value under key, deleting it if expired.
func (s *MemoryStore) liveValueLocked(key string) (memoryValue, bool) {
	v, ok := s.values[key]
	if !ok {
		return memoryValue{}, false
	}
	if !v.expiresAt.IsZero() && !s.now().Before(v.expiresAt) {
		delete(s.values, key)
		return memoryValue{}, false
	}
	return v, true
}

var _ Store = (*MemoryStore)(nil)
