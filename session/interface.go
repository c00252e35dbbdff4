package session

import "context"

// Store defines the interface for session storage operations.
//
// Errors wrap the sentinels of the chatstore package: ErrInvalidInput for
// malformed arguments, ErrNotFound when a mutation targets a missing
// session, ErrRetrievalFailure when the backing store fails and
// ErrVersionConflict when a mutation keeps losing optimistic-lock races.
type Store interface {
	// Create creates a new session for userID on platform (default web)
	// and registers it in the per-user and per-platform indexes.
	Create(ctx context.Context, userID string, platform Platform) (*Session, error)

	// Get retrieves a session by ID.
	// Returns nil if the session is not found (not an error). Sessions that
	// are idle past the expiry threshold but not yet swept are returned.
	Get(ctx context.Context, id string) (*Session, error)

	// GetByUserID returns all stored sessions of a user, unordered.
	GetByUserID(ctx context.Context, userID string) ([]*Session, error)

	// GetByPlatform returns all stored sessions opened on platform.
	GetByPlatform(ctx context.Context, platform Platform) ([]*Session, error)

	// AddMessage appends msg to the session and bumps LastActivity.
	AddMessage(ctx context.Context, id string, msg Message) error

	// UpdateContext shallow-merges partial into the session context and
	// bumps LastActivity.
	UpdateContext(ctx context.Context, id string, partial map[string]any) error

	// SetActive flags or unflags a session as the user's current one.
	// Flagging a session clears the flag on the user's other sessions.
	SetActive(ctx context.Context, id string, active bool) error

	// Remove deletes a session and its index entries.
	Remove(ctx context.Context, id string) error

	// RemoveExpired deletes every session idle past the expiry threshold
	// and returns how many were removed. Safe to run concurrently.
	RemoveExpired(ctx context.Context) (int, error)

	// Clear deletes every session.
	Clear(ctx context.Context) error

	// Total returns the number of stored sessions, expired or not.
	Total(ctx context.Context) (int, error)

	// Active returns the number of sessions within the expiry threshold.
	Active(ctx context.Context) (int, error)
}
