package analytics

import (
	"strconv"
	"time"
)

// Counter fields of a metrics bucket.
const (
	fieldTotalEvents    = "total_events"
	fieldErrors         = "errors"
	fieldEventPrefix    = "event_"
	fieldPlatformPrefix = "platform_"
	fieldIntentPrefix   = "intent_"
)

// Rolling sample kinds.
const (
	sampleResponseTime = "response_time"
	sampleConfidence   = "confidence"
)

// noSession stands in for an empty session ID inside raw event keys.
const noSession = "-"

const (
	dayLayout  = "2006-01-02"
	hourLayout = "2006-01-02T15"
)

// Buckets are aligned to UTC so every node agrees on window boundaries.
func dayStamp(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

func hourStamp(t time.Time) string {
	return t.UTC().Format(hourLayout)
}

func (e *Engine) dayBucketKey(t time.Time) string {
	return e.prefix + "metrics:day:" + dayStamp(t)
}

func (e *Engine) hourBucketKey(t time.Time) string {
	return e.prefix + "metrics:hour:" + hourStamp(t)
}

func (e *Engine) sampleKey(kind string, t time.Time) string {
	return e.prefix + "samples:" + kind + ":" + dayStamp(t)
}

// eventPrefix returns the raw-event key prefix for a user, narrowed to one
// session when sessionID is set.
func (e *Engine) eventPrefix(userID, sessionID string) string {
	p := e.prefix + "event:" + userID + ":"
	if sessionID != "" {
		p += sessionID + ":"
	}
	return p
}

func (e *Engine) eventKey(ev *Event) string {
	sessionID := ev.SessionID
	if sessionID == "" {
		sessionID = noSession
	}
	return e.eventPrefix(ev.UserID, sessionID) +
		strconv.FormatInt(ev.Timestamp.UnixNano(), 10) + ":" + e.newID()
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
