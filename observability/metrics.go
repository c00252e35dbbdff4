package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstore_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatstore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Analytics ingestion metrics
	analyticsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstore_analytics_events_total",
			Help: "Total number of analytics events ingested",
		},
		[]string{"event_type"},
	)

	analyticsTrackFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstore_analytics_track_failures_total",
			Help: "Analytics ingestion writes that failed and were swallowed",
		},
		[]string{"stage"},
	)

	analyticsEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatstore_analytics_events_dropped_total",
			Help: "Analytics events dropped by the ingestion rate limit",
		},
	)

	// Session sweep metrics
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstore_session_sweeps_total",
			Help: "Total number of expiry sweeps",
		},
		[]string{"status"},
	)

	sweepRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatstore_sessions_expired_total",
			Help: "Sessions removed by expiry sweeps",
		},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatstore_session_sweep_duration_seconds",
			Help:    "Expiry sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			analyticsEventsTotal,
			analyticsTrackFailures,
			analyticsEventsDropped,
			sweepRunsTotal,
			sweepRemovedTotal,
			sweepDuration,
		)
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEventTracked records an ingested analytics event.
func RecordEventTracked(eventType string) {
	analyticsEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordTrackFailure records a swallowed ingestion failure at stage.
func RecordTrackFailure(stage string) {
	analyticsTrackFailures.WithLabelValues(stage).Inc()
}

// RecordEventDropped records an event rejected by the rate limiter.
func RecordEventDropped() {
	analyticsEventsDropped.Inc()
}

// RecordSweep records one expiry sweep.
func RecordSweep(removed int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	sweepRunsTotal.WithLabelValues(status).Inc()
	sweepRemovedTotal.Add(float64(removed))
	sweepDuration.Observe(duration.Seconds())
}
