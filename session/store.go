package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creastat/chatstore"
	"github.com/creastat/chatstore/kv"
)

var indexMarker = []byte("1")

// KVStore implements Store on top of a kv.Store.
//
// Each session is one JSON record. Per-user and per-platform indexes are
// marker keys whose suffix is the session ID, enumerated by prefix.
// Mutations are serialized per session ID inside the process and written
// with compare-and-swap, so concurrent writers in other processes are
// detected and retried instead of silently overwritten.
type KVStore struct {
	kv         kv.Store
	prefix     string
	expiry     time.Duration
	recordTTL  time.Duration
	maxRetries int
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
	locks      *keyedMutex
}

// NewStore creates a session store backed by backend.
func NewStore(backend kv.Store, opts ...StoreOption) *KVStore {
	config := &storeConfig{
		expiry:     DefaultExpiry,
		keyPrefix:  DefaultKeyPrefix,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.maxRetries < 1 {
		config.maxRetries = 1
	}

	return &KVStore{
		kv:         backend,
		prefix:     config.keyPrefix,
		expiry:     config.expiry,
		recordTTL:  config.recordTTL,
		maxRetries: config.maxRetries,
		now:        config.now,
		newID:      config.newID,
		logger:     config.logger,
		locks:      newKeyedMutex(),
	}
}

// Expiry returns the idle threshold used by the store.
func (s *KVStore) Expiry() time.Duration {
	return s.expiry
}

// Key helpers
func (s *KVStore) sessionPrefix() string {
	return s.prefix + "session:"
}

func (s *KVStore) sessionKey(id string) string {
	return s.sessionPrefix() + id
}

func (s *KVStore) userIndexPrefix(userID string) string {
	return s.prefix + "idx:user:" + userID + ":"
}

func (s *KVStore) platformIndexPrefix(p Platform) string {
	return s.prefix + "idx:platform:" + string(p) + ":"
}

// Create implements Store.
func (s *KVStore) Create(ctx context.Context, userID string, platform Platform) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", chatstore.ErrInvalidInput)
	}
	if platform == "" {
		platform = PlatformWeb
	}

	now := s.now()
	sess := &Session{
		ID:           s.newID(),
		UserID:       userID,
		Platform:     platform,
		CreatedAt:    now,
		LastActivity: now,
		Version:      1,
		Context:      map[string]any{},
		Messages:     []Message{},
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.kv.CompareAndSwap(ctx, s.sessionKey(sess.ID), nil, data, s.recordTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %w", chatstore.ErrRetrievalFailure, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: session id %s already exists", chatstore.ErrVersionConflict, sess.ID)
	}

	if err := s.kv.Set(ctx, s.userIndexPrefix(userID)+sess.ID, indexMarker, s.recordTTL); err != nil {
		return nil, fmt.Errorf("%w: index session by user: %w", chatstore.ErrRetrievalFailure, err)
	}
	if err := s.kv.Set(ctx, s.platformIndexPrefix(platform)+sess.ID, indexMarker, s.recordTTL); err != nil {
		return nil, fmt.Errorf("%w: index session by platform: %w", chatstore.ErrRetrievalFailure, err)
	}

	s.logger.Debug("session created",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("platform", string(platform)))

	return sess, nil
}

// Get implements Store.
func (s *KVStore) Get(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: session id is required", chatstore.ErrInvalidInput)
	}
	sess, _, err := s.load(ctx, id)
	return sess, err
}

// GetByUserID implements Store.
func (s *KVStore) GetByUserID(ctx context.Context, userID string) ([]*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", chatstore.ErrInvalidInput)
	}
	return s.loadIndexed(ctx, s.userIndexPrefix(userID), func(sess *Session) bool {
		return sess.UserID == userID
	})
}

// GetByPlatform implements Store.
func (s *KVStore) GetByPlatform(ctx context.Context, platform Platform) ([]*Session, error) {
	if platform == "" {
		return nil, fmt.Errorf("%w: platform is required", chatstore.ErrInvalidInput)
	}
	return s.loadIndexed(ctx, s.platformIndexPrefix(platform), func(sess *Session) bool {
		return sess.Platform == platform
	})
}

// AddMessage implements Store.
func (s *KVStore) AddMessage(ctx context.Context, id string, msg Message) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session id is required", chatstore.ErrInvalidInput)
	}
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return fmt.Errorf("%w: message role must be %q or %q", chatstore.ErrInvalidInput, RoleUser, RoleAssistant)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: message content is required", chatstore.ErrInvalidInput)
	}

	return s.mutate(ctx, id, true, func(sess *Session) {
		sess.Messages = AppendMessage(sess.Messages, msg, s.now())
	})
}

// UpdateContext implements Store.
func (s *KVStore) UpdateContext(ctx context.Context, id string, partial map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session id is required", chatstore.ErrInvalidInput)
	}
	if partial == nil {
		return fmt.Errorf("%w: context update is required", chatstore.ErrInvalidInput)
	}

	return s.mutate(ctx, id, true, func(sess *Session) {
		if sess.Context == nil {
			sess.Context = make(map[string]any, len(partial))
		}
		for k, v := range partial {
			sess.Context[k] = v
		}
	})
}

// SetActive implements Store.
func (s *KVStore) SetActive(ctx context.Context, id string, active bool) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session id is required", chatstore.ErrInvalidInput)
	}

	var userID string
	err := s.mutate(ctx, id, true, func(sess *Session) {
		sess.IsActive = active
		userID = sess.UserID
	})
	if err != nil || !active {
		return err
	}

	siblings, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == id || !other.IsActive {
			continue
		}
		err := s.mutate(ctx, other.ID, false, func(sess *Session) {
			sess.IsActive = false
		})
		if err != nil && !errors.Is(err, chatstore.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Remove implements Store.
func (s *KVStore) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session id is required", chatstore.ErrInvalidInput)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, _, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("%w: %s", chatstore.ErrNotFound, id)
	}
	return s.deleteRecord(ctx, sess)
}

// RemoveExpired implements Store.
// Each candidate is re-read under its lock before deletion so a session
// touched since the scan survives.
func (s *KVStore) RemoveExpired(ctx context.Context) (int, error) {
	ids, err := s.sessionIDs(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		ok, err := s.removeIfExpired(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("expired sessions removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *KVStore) removeIfExpired(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, _, err := s.load(ctx, id)
	if err != nil || sess == nil {
		return false, err
	}
	if !sess.Expired(s.now(), s.expiry) {
		return false, nil
	}
	if err := s.deleteRecord(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// Clear implements Store.
func (s *KVStore) Clear(ctx context.Context) error {
	keys, err := s.kv.KeysByPrefix(ctx, s.prefix)
	if err != nil {
		return fmt.Errorf("%w: list session keys: %w", chatstore.ErrRetrievalFailure, err)
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: clear sessions: %w", chatstore.ErrRetrievalFailure, err)
	}
	return nil
}

// Total implements Store.
func (s *KVStore) Total(ctx context.Context) (int, error) {
	ids, err := s.sessionIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Active implements Store.
func (s *KVStore) Active(ctx context.Context) (int, error) {
	ids, err := s.sessionIDs(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	active := 0
	for _, id := range ids {
		sess, _, err := s.load(ctx, id)
		if err != nil {
			return 0, err
		}
		if sess != nil && !sess.Expired(now, s.expiry) {
			active++
		}
	}
	return active, nil
}

// mutate applies fn to the stored session under the per-ID lock and writes
// it back with compare-and-swap, retrying on conflicting writers.
func (s *KVStore) mutate(ctx context.Context, id string, touch bool, fn func(*Session)) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	key := s.sessionKey(id)
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		sess, raw, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("%w: %s", chatstore.ErrNotFound, id)
		}

		fn(sess)
		sess.Version++
		if touch {
			sess.LastActivity = s.now()
		}

		next, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		ok, err := s.kv.CompareAndSwap(ctx, key, raw, next, s.recordTTL)
		if err != nil {
			return fmt.Errorf("%w: write session %s: %w", chatstore.ErrRetrievalFailure, id, err)
		}
		if ok {
			return nil
		}

		s.logger.Debug("session write conflict, retrying",
			zap.String("session_id", id),
			zap.Int("attempt", attempt))
	}

	return fmt.Errorf("%w: session %s after %d attempts", chatstore.ErrVersionConflict, id, s.maxRetries)
}

// load returns the decoded session and its raw record, or nil if absent.
func (s *KVStore) load(ctx context.Context, id string) (*Session, []byte, error) {
	raw, err := s.kv.Get(ctx, s.sessionKey(id))
	if errors.Is(err, kv.ErrNil) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: get session %s: %w", chatstore.ErrRetrievalFailure, id, err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, nil, fmt.Errorf("%w: decode session %s: %w", chatstore.ErrRetrievalFailure, id, err)
	}
	return &sess, raw, nil
}

// loadIndexed loads every session referenced by the index under prefix.
// Markers pointing at removed sessions are cleaned up.
func (s *KVStore) loadIndexed(ctx context.Context, prefix string, match func(*Session) bool) ([]*Session, error) {
	keys, err := s.kv.KeysByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list index %s: %w", chatstore.ErrRetrievalFailure, prefix, err)
	}

	sessions := make([]*Session, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, prefix)
		// Generated IDs never contain ':'; a longer suffix belongs to another
		// index entry that happens to share this prefix.
		if id == "" || strings.Contains(id, ":") {
			continue
		}

		sess, _, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			_ = s.kv.Delete(ctx, key)
			continue
		}
		if match(sess) {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

func (s *KVStore) sessionIDs(ctx context.Context) ([]string, error) {
	prefix := s.sessionPrefix()
	keys, err := s.kv.KeysByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", chatstore.ErrRetrievalFailure, err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, prefix))
	}
	return ids, nil
}

func (s *KVStore) deleteRecord(ctx context.Context, sess *Session) error {
	err := s.kv.Delete(ctx,
		s.sessionKey(sess.ID),
		s.userIndexPrefix(sess.UserID)+sess.ID,
		s.platformIndexPrefix(sess.Platform)+sess.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: delete session %s: %w", chatstore.ErrRetrievalFailure, sess.ID, err)
	}
	return nil
}

// Compile-time check that KVStore implements Store
var _ Store = (*KVStore)(nil)
