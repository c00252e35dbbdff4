package session

import "time"

// Platform identifies the channel a session was opened on.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformTelegram Platform = "telegram"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single conversation turn.
type Message struct {
	Role       string    `json:"role"` // "user" or "assistant"
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"` // Estimated tokens
	Timestamp  time.Time `json:"timestamp"`
}

// Session is the persisted state of one ongoing conversation.
//
// Messages is append-only. Context keys are added or overwritten by
// UpdateContext and never removed implicitly. Values in Context round-trip
// through JSON, so numbers come back as float64.
type Session struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Platform     Platform       `json:"platform"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Version      int64          `json:"version"` // Monotonically increasing for optimistic locking
	IsActive     bool           `json:"is_active"`
	Context      map[string]any `json:"context"`
	Messages     []Message      `json:"messages"`
}

// LastSeen returns LastActivity, falling back to CreatedAt when it is unset.
func (s *Session) LastSeen() time.Time {
	if s.LastActivity.IsZero() {
		return s.CreatedAt
	}
	return s.LastActivity
}

// Expired reports whether the session has been idle longer than expiry.
func (s *Session) Expired(now time.Time, expiry time.Duration) bool {
	return now.Sub(s.LastSeen()) > expiry
}

// RecentMessages returns the tail of the conversation that fits within
// the given token and message limits. The session is not modified.
func (s *Session) RecentMessages(tokenLimit, messageLimit int) []Message {
	history := make([]Message, len(s.Messages))
	copy(history, s.Messages)
	return TruncateHistory(history, tokenLimit, messageLimit)
}
