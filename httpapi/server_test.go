package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatstore"
	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/kv"
	"github.com/creastat/chatstore/session"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	handler  http.Handler
	engine   *analytics.Engine
	sessions *session.KVStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	backend := kv.NewMemoryStore(clock)
	t.Cleanup(func() { _ = backend.Close() })

	engine := analytics.NewEngine(backend, analytics.WithClock(clock))
	sessions := session.NewStore(backend, session.WithClock(clock))

	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{
		handler:  NewServer(engine, sessions, opts...).Handler(),
		engine:   engine,
		sessions: sessions,
	}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestTrackAndReport(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, "/analytics",
			`{"userId":"u1","sessionId":"s1","platform":"web","eventType":"nlp_processed","intent":"greeting","confidence":0.9}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode(t, rec, nil).Success)
	}

	rec := f.do(t, http.MethodGet, "/analytics?period=day", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report analytics.Report
	decode(t, rec, &report)
	assert.Equal(t, analytics.PeriodDay, report.Period)
	assert.Equal(t, int64(3), report.Metrics.TotalEvents)
	assert.Equal(t, int64(3), report.Metrics.Platforms["web"])
	assert.Equal(t, int64(3), report.Metrics.Intents["greeting"])
	assert.InDelta(t, 0.9, report.Performance.AvgConfidence, 1e-9)
}

func TestTrackEventAlwaysOK(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/analytics", `{not json`)
	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec, nil)
	assert.False(t, env.Success)
	assert.Equal(t, "ignored", env.Message)

	// Missing event type is acknowledged and dropped by the engine.
	rec = f.do(t, http.MethodPost, "/analytics", `{"userId":"u1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	report, err := f.engine.GetAnalytics(context.Background(), analytics.PeriodDay)
	require.NoError(t, err)
	assert.Zero(t, report.Metrics.TotalEvents)
}

func TestTrackEventRateLimited(t *testing.T) {
	f := newFixture(t, WithIngestLimit(0.001, 1))

	body := `{"userId":"u1","platform":"web","eventType":"message_received"}`
	first := f.do(t, http.MethodPost, "/analytics", body)
	second := f.do(t, http.MethodPost, "/analytics", body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "tracked", decode(t, first, nil).Message)
	assert.Equal(t, "dropped", decode(t, second, nil).Message)

	report, err := f.engine.GetAnalytics(context.Background(), analytics.PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Metrics.TotalEvents)
}

func TestInvalidPeriod(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/analytics", "/analytics/intents", "/analytics/platforms", "/analytics/export"} {
		rec := f.do(t, http.MethodGet, path+"?period=year", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.False(t, decode(t, rec, nil).Success, path)
	}
}

func TestRankedBreakdowns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for intent, n := range map[string]int{"greeting": 20, "exchange_rate": 30, "send_money": 25} {
		for i := 0; i < n; i++ {
			f.engine.TrackEvent(ctx, analytics.Event{UserID: "u", Platform: "whatsapp", EventType: analytics.EventNLPProcessed, Intent: intent})
		}
	}
	for i := 0; i < 25; i++ {
		f.engine.TrackEvent(ctx, analytics.Event{UserID: "u", Platform: "web", EventType: analytics.EventMessageReceived})
	}

	var intents []analytics.IntentStat
	rec := f.do(t, http.MethodGet, "/analytics/intents?period=week", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &intents)
	require.Len(t, intents, 3)
	assert.Equal(t, analytics.IntentStat{Intent: "exchange_rate", Count: 30, Percentage: 30}, intents[0])

	var platforms []analytics.PlatformStat
	rec = f.do(t, http.MethodGet, "/analytics/platforms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &platforms)
	require.Len(t, platforms, 2)
	assert.Equal(t, analytics.PlatformStat{Platform: "whatsapp", Count: 75, Percentage: 75}, platforms[0])
}

func TestJourney(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.TrackEvent(ctx, analytics.Event{Timestamp: testNow.Add(-2 * time.Minute), UserID: "u1", SessionID: "s1", Platform: "web", EventType: analytics.EventNLPProcessed, Intent: "greeting"})
	f.engine.TrackEvent(ctx, analytics.Event{Timestamp: testNow.Add(-time.Minute), UserID: "u1", SessionID: "s2", Platform: "web", EventType: analytics.EventNLPProcessed, Intent: "exchange_rate"})

	var journey analytics.Journey
	rec := f.do(t, http.MethodGet, "/analytics/user/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &journey)
	assert.Equal(t, 2, journey.TotalEvents)
	assert.Equal(t, []string{"greeting", "exchange_rate"}, journey.IntentFlow)

	journey = analytics.Journey{}
	rec = f.do(t, http.MethodGet, "/analytics/user/u1?sessionId=s2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &journey)
	assert.Equal(t, []string{"exchange_rate"}, journey.IntentFlow)
}

func TestHourly(t *testing.T) {
	f := newFixture(t)
	f.engine.TrackEvent(context.Background(), analytics.Event{UserID: "u", Platform: "web", EventType: analytics.EventError, Error: "boom"})

	var hours []analytics.HourCount
	rec := f.do(t, http.MethodGet, "/analytics/hourly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &hours)
	require.Len(t, hours, 24)
	assert.Equal(t, analytics.HourCount{Hour: 12, Events: 1, Errors: 1}, hours[12])

	rec = f.do(t, http.MethodGet, "/analytics/hourly?date=2026-10-14", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hours = nil
	decode(t, rec, &hours)
	assert.Zero(t, hours[12].Events)

	rec = f.do(t, http.MethodGet, "/analytics/hourly?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.engine.TrackEvent(context.Background(), analytics.Event{UserID: "u", Platform: "telegram", EventType: analytics.EventMessageReceived})

	rec := f.do(t, http.MethodGet, "/analytics/export?period=day&format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "analytics-day.csv")
	assert.Contains(t, rec.Body.String(), "Metric,Value")
	assert.Contains(t, rec.Body.String(), "Platform: telegram,1")

	rec = f.do(t, http.MethodGet, "/analytics/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var report analytics.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, int64(1), report.Metrics.TotalEvents)

	rec = f.do(t, http.MethodGet, "/analytics/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// brokenAnalytics fails every read.
type brokenAnalytics struct{ Analytics }

var errBackend = fmt.Errorf("%w: backend down", chatstore.ErrRetrievalFailure)

func (brokenAnalytics) GetAnalytics(context.Context, analytics.Period) (*analytics.Report, error) {
	return nil, errBackend
}

func (brokenAnalytics) GetUserJourney(context.Context, string, string) (*analytics.Journey, error) {
	return nil, fmt.Errorf("%w: user id is required", chatstore.ErrInvalidInput)
}

func (brokenAnalytics) ExportAnalytics(context.Context, analytics.Period, analytics.Format) (string, error) {
	return "", fmt.Errorf("%w: %w", chatstore.ErrExportFailure, errBackend)
}

func TestErrorMapping(t *testing.T) {
	h := NewServer(brokenAnalytics{}, nil).Handler()

	tests := []struct {
		target string
		status int
	}{
		{"/analytics", http.StatusInternalServerError},
		{"/analytics/export?format=csv", http.StatusInternalServerError},
		{"/analytics/user/u1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
		assert.Equal(t, tt.status, rec.Code, tt.target)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), tt.target)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", chatstore.ErrInvalidInput)))
	assert.Equal(t, http.StatusNotFound, statusFor(chatstore.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(chatstore.ErrRetrievalFailure))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}

func TestSessionStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Create(ctx, "u1", session.PlatformWeb)
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, "u2", session.PlatformTelegram)
	require.NoError(t, err)

	var stats map[string]int
	rec := f.do(t, http.MethodGet, "/sessions/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stats)
	assert.Equal(t, map[string]int{"total": 2, "active": 2}, stats)
}

func TestHealthAndCORS(t *testing.T) {
	f := newFixture(t, WithAllowedOrigins([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	var health map[string]any
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
