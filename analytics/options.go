package analytics

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix namespaces every analytics key.
	DefaultKeyPrefix = "analytics:"
	// DefaultEventTTL bounds how long raw events are kept.
	DefaultEventTTL = 7 * 24 * time.Hour
	// DefaultSampleSize caps each rolling sample.
	DefaultSampleSize = 1000
	// DefaultFanout bounds concurrent bucket reads for multi-day periods.
	DefaultFanout = 8
)

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	keyPrefix  string
	eventTTL   time.Duration
	sampleSize int64
	fanout     int
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *engineConfig) {
		c.keyPrefix = prefix
	}
}

// WithEventTTL sets the raw-event TTL.
func WithEventTTL(ttl time.Duration) Option {
	return func(c *engineConfig) {
		c.eventTTL = ttl
	}
}

// WithSampleSize sets the rolling sample capacity.
func WithSampleSize(n int64) Option {
	return func(c *engineConfig) {
		c.sampleSize = n
	}
}

// WithFanout sets how many day buckets are read concurrently.
func WithFanout(n int) Option {
	return func(c *engineConfig) {
		c.fanout = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) {
		c.now = now
	}
}

// WithIDGenerator overrides the generator of raw event key suffixes.
func WithIDGenerator(fn func() string) Option {
	return func(c *engineConfig) {
		c.newID = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}
