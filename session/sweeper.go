package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/creastat/chatstore/observability"
)

// DefaultSweepSchedule runs the expiry sweep every five minutes.
const DefaultSweepSchedule = "@every 5m"

// Expirer removes expired sessions.
type Expirer interface {
	RemoveExpired(ctx context.Context) (int, error)
}

// Sweeper runs RemoveExpired on a cron schedule. A run still in progress
// when the next one is due causes that tick to be skipped.
type Sweeper struct {
	store   Expirer
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
}

// NewSweeper creates a sweeper for store. schedule accepts standard cron
// specs and descriptors such as "@every 5m"; empty means
// DefaultSweepSchedule. Each run is bounded by timeout when positive.
func NewSweeper(store Expirer, schedule string, timeout time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		store:   store,
		timeout: timeout,
		logger:  logger,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop stops scheduling sweeps and waits for a running one to finish or
// ctx to be done.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	removed, err := s.store.RemoveExpired(ctx)
	observability.RecordSweep(removed, time.Since(start), err)

	if err != nil {
		s.logger.Error("session sweep failed", zap.Int("removed", removed), zap.Error(err))
		return removed, err
	}
	s.logger.Debug("session sweep finished", zap.Int("removed", removed), zap.Duration("took", time.Since(start)))
	return removed, nil
}
