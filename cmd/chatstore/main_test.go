package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/config"
	"github.com/creastat/chatstore/kv"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CHATSTORE_STORE_TYPE", "memory")
	t.Setenv("CHATSTORE_LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	out, err := run(t, "export", "--period", "week")
	require.NoError(t, err)

	var report analytics.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, analytics.PeriodWeek, report.Period)
	assert.Zero(t, report.Metrics.TotalEvents)
}

func TestExportCommandCSV(t *testing.T) {
	out, err := run(t, "export", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Metric,Value")
	assert.Contains(t, out, "Period,day")
}

func TestExportCommandRejectsBadFlags(t *testing.T) {
	_, err := run(t, "export", "--period", "year")
	assert.Error(t, err)

	_, err = run(t, "export", "--format", "xml")
	assert.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	out, err := run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 expired sessions")
}

type sinkFunc func(ctx context.Context, day time.Time, report *analytics.Report) error

func (f sinkFunc) PublishDailyReport(ctx context.Context, day time.Time, report *analytics.Report) error {
	return f(ctx, day, report)
}

func TestPublishPreviousDay(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 5, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	backend := kv.NewMemoryStore(clock)
	t.Cleanup(func() { _ = backend.Close() })
	engine := analytics.NewEngine(backend, analytics.WithClock(clock))

	ctx := context.Background()
	engine.TrackEvent(ctx, analytics.Event{Timestamp: now.Add(-time.Hour), UserID: "u", Platform: "web", EventType: analytics.EventMessageReceived})
	engine.TrackEvent(ctx, analytics.Event{UserID: "u", Platform: "web", EventType: analytics.EventMessageReceived})

	var gotDay time.Time
	var gotTotal int64
	err := publishPreviousDay(ctx, engine, sinkFunc(func(_ context.Context, day time.Time, r *analytics.Report) error {
		gotDay = day
		gotTotal = r.Metrics.TotalEvents
		return nil
	}), now)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), gotDay)
	assert.Equal(t, int64(1), gotTotal)
}

type recordingSink struct {
	closed int
}

func (s *recordingSink) PublishDailyReport(context.Context, time.Time, *analytics.Report) error {
	return nil
}

func (s *recordingSink) Close() error {
	s.closed++
	return nil
}

func TestStopReportPublisherClosesSink(t *testing.T) {
	sink := &recordingSink{}
	c := cron.New()
	c.Start()

	stopReportPublisher(c, sink, zap.NewNop())

	assert.Equal(t, 1, sink.closed)
}

func TestReportPublisherDisabledWithoutSupabase(t *testing.T) {
	a := &app{cfg: config.Default(), logger: zap.NewNop()}

	c, sink, err := newReportPublisher(a)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, sink)
}
