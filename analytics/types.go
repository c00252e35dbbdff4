package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/creastat/chatstore"
)

// Well-known event types emitted by the chat orchestrator.
const (
	EventMessageReceived   = "message_received"
	EventNLPProcessed      = "nlp_processed"
	EventResponseGenerated = "response_generated"
	EventError             = "error"
)

// Event is one fact about one turn of interaction. Events are immutable
// once tracked.
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"userId"`
	SessionID    string         `json:"sessionId,omitempty"`
	Platform     string         `json:"platform"`
	EventType    string         `json:"eventType"`
	Intent       string         `json:"intent,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`   // 0..1
	Entities     map[string]any `json:"entities,omitempty"`
	ResponseTime *float64       `json:"responseTime,omitempty"` // milliseconds
	Message      string         `json:"message,omitempty"`
	Response     string         `json:"response,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// IsError reports whether the event counts towards the errors counter.
func (e *Event) IsError() bool {
	return e.EventType == EventError || e.Error != ""
}

// Period is a reporting window ending today.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Days returns how many day buckets the period spans.
func (p Period) Days() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 30
	default:
		return 1
	}
}

// ParsePeriod parses a period name; empty means day.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodWeek, PeriodMonth:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", chatstore.ErrInvalidInput, s)
	}
}

// Format is an export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses an export format name; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", chatstore.ErrInvalidInput, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Report is the derived view of one period.
type Report struct {
	Period      Period      `json:"period"`
	Metrics     Metrics     `json:"metrics"`
	Performance Performance `json:"performance"`
}

// Metrics holds summed counters.
type Metrics struct {
	TotalEvents int64            `json:"totalEvents"`
	Events      map[string]int64 `json:"events"`
	Platforms   map[string]int64 `json:"platforms"`
	Intents     map[string]int64 `json:"intents"`
	Errors      int64            `json:"errors"`
}

// Performance holds rolling-sample averages. For multi-day periods these
// are averages of the daily averages and therefore approximate.
type Performance struct {
	AvgResponseTime float64 `json:"avgResponseTime"`
	AvgConfidence   float64 `json:"avgConfidence"`
}

// IntentStat is one row of the intent ranking.
type IntentStat struct {
	Intent     string `json:"intent"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

// PlatformStat is one row of the platform ranking.
type PlatformStat struct {
	Platform   string `json:"platform"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

// HourCount is the activity of one hour bucket.
type HourCount struct {
	Hour   int   `json:"hour"`
	Events int64 `json:"events"`
	Errors int64 `json:"errors"`
}

// Journey is the chronological reconstruction of a user's tracked events.
type Journey struct {
	UserID        string           `json:"userId"`
	SessionID     string           `json:"sessionId,omitempty"`
	TotalEvents   int              `json:"totalEvents"`
	Events        []Event          `json:"events"`
	IntentFlow    []string         `json:"intentFlow"`
	PlatformUsage map[string]int64 `json:"platformUsage"`
}
