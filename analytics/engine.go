package analytics

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creastat/chatstore/kv"
	"github.com/creastat/chatstore/observability"
)

const (
	anonymousUser   = "anonymous"
	unknownPlatform = "unknown"
)

// Engine ingests analytics events into pre-aggregated hour and day
// buckets and derives reports from them.
//
// Counters are only ever changed through atomic hash increments, so
// concurrent TrackEvent calls need no locking.
type Engine struct {
	kv         kv.Store
	prefix     string
	eventTTL   time.Duration
	sampleSize int64
	fanout     int
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
}

// NewEngine creates an analytics engine backed by backend.
func NewEngine(backend kv.Store, opts ...Option) *Engine {
	config := &engineConfig{
		keyPrefix:  DefaultKeyPrefix,
		eventTTL:   DefaultEventTTL,
		sampleSize: DefaultSampleSize,
		fanout:     DefaultFanout,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.fanout < 1 {
		config.fanout = 1
	}

	return &Engine{
		kv:         backend,
		prefix:     config.keyPrefix,
		eventTTL:   config.eventTTL,
		sampleSize: config.sampleSize,
		fanout:     config.fanout,
		now:        config.now,
		newID:      config.newID,
		logger:     config.logger,
	}
}

// TrackEvent records ev. It never fails: storage errors are logged,
// counted and swallowed so analytics cannot break the chat path. Each
// side effect is attempted independently of the others.
//
// Buckets are chosen by the event timestamp, which defaults to now.
func (e *Engine) TrackEvent(ctx context.Context, ev Event) {
	if ev.EventType == "" {
		e.logger.Warn("analytics event without event type dropped",
			zap.String("user_id", ev.UserID),
			zap.String("session_id", ev.SessionID))
		observability.RecordTrackFailure("validate")
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if ev.UserID == "" {
		ev.UserID = anonymousUser
	}
	if ev.Platform == "" {
		ev.Platform = unknownPlatform
	}

	if ev.ResponseTime != nil && !validResponseTime(*ev.ResponseTime) {
		e.sampleRejected(&ev, sampleResponseTime, *ev.ResponseTime)
		ev.ResponseTime = nil
	}
	if ev.Confidence != nil && !validConfidence(*ev.Confidence) {
		e.sampleRejected(&ev, sampleConfidence, *ev.Confidence)
		ev.Confidence = nil
	}

	e.storeRaw(ctx, &ev)
	e.incrementBuckets(ctx, &ev)

	if ev.ResponseTime != nil {
		e.pushSample(ctx, sampleResponseTime, ev.Timestamp, *ev.ResponseTime)
	}
	if ev.Confidence != nil {
		e.pushSample(ctx, sampleConfidence, ev.Timestamp, *ev.Confidence)
	}

	observability.RecordEventTracked(metricEventType(ev.EventType))
}

func (e *Engine) storeRaw(ctx context.Context, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.trackFailed("encode", ev, err)
		return
	}
	if err := e.kv.Set(ctx, e.eventKey(ev), data, e.eventTTL); err != nil {
		e.trackFailed("raw", ev, err)
	}
}

func (e *Engine) incrementBuckets(ctx context.Context, ev *Event) {
	fields := []string{
		fieldTotalEvents,
		fieldEventPrefix + ev.EventType,
		fieldPlatformPrefix + ev.Platform,
	}
	if ev.Intent != "" {
		fields = append(fields, fieldIntentPrefix+ev.Intent)
	}
	if ev.IsError() {
		fields = append(fields, fieldErrors)
	}

	for _, key := range []string{e.hourBucketKey(ev.Timestamp), e.dayBucketKey(ev.Timestamp)} {
		for _, field := range fields {
			if _, err := e.kv.HashIncrement(ctx, key, field, 1); err != nil {
				e.trackFailed("counter", ev, err)
			}
		}
	}
}

func (e *Engine) pushSample(ctx context.Context, kind string, at time.Time, v float64) {
	key := e.sampleKey(kind, at)
	if err := e.kv.ListPush(ctx, key, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		e.logger.Warn("analytics sample push failed", zap.String("sample", kind), zap.Error(err))
		observability.RecordTrackFailure("sample")
		return
	}
	if err := e.kv.ListTrim(ctx, key, e.sampleSize); err != nil {
		e.logger.Warn("analytics sample trim failed", zap.String("sample", kind), zap.Error(err))
		observability.RecordTrackFailure("sample")
	}
}

// metricEventType bounds the metric label to the known event types.
func metricEventType(t string) string {
	switch t {
	case EventMessageReceived, EventNLPProcessed, EventResponseGenerated, EventError:
		return t
	default:
		return "other"
	}
}

// validResponseTime accepts finite, non-negative milliseconds.
func validResponseTime(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// validConfidence accepts scores in [0, 1]. NaN fails both comparisons.
func validConfidence(v float64) bool {
	return v >= 0 && v <= 1
}

// sampleRejected drops an out-of-range measurement; the event itself is
// still recorded without it.
func (e *Engine) sampleRejected(ev *Event, kind string, v float64) {
	e.logger.Warn("analytics sample out of range dropped",
		zap.String("sample", kind),
		zap.Float64("value", v),
		zap.String("event_type", ev.EventType),
		zap.String("user_id", ev.UserID))
	observability.RecordTrackFailure("validate")
}

func (e *Engine) trackFailed(stage string, ev *Event, err error) {
	e.logger.Warn("analytics write failed",
		zap.String("stage", stage),
		zap.String("event_type", ev.EventType),
		zap.String("user_id", ev.UserID),
		zap.Error(err))
	observability.RecordTrackFailure(stage)
}
