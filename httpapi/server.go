package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/observability"
)

const maxEventBytes = 64 << 10

// Analytics is the part of the analytics engine the API serves.
type Analytics interface {
	TrackEvent(ctx context.Context, ev analytics.Event)
	GetAnalytics(ctx context.Context, period analytics.Period) (*analytics.Report, error)
	GetIntentPerformance(ctx context.Context, period analytics.Period) ([]analytics.IntentStat, error)
	GetPlatformUsage(ctx context.Context, period analytics.Period) ([]analytics.PlatformStat, error)
	GetHourlyActivity(ctx context.Context, day time.Time) ([]analytics.HourCount, error)
	GetUserJourney(ctx context.Context, userID, sessionID string) (*analytics.Journey, error)
	ExportAnalytics(ctx context.Context, period analytics.Period, format analytics.Format) (string, error)
}

// SessionCounter reports aggregate session counts.
type SessionCounter interface {
	Total(ctx context.Context) (int, error)
	Active(ctx context.Context) (int, error)
}

// Server exposes the analytics engine and session counts over HTTP.
type Server struct {
	analytics Analytics
	sessions  SessionCounter
	limiter   *rate.Limiter
	origins   []string
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithIngestLimit caps POST /analytics at perSecond events with the given
// burst. Events over the limit are acknowledged and dropped. A
// non-positive rate disables limiting.
func WithIngestLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithAllowedOrigins sets the CORS origins. Without it any origin is allowed.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the time source used for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates the API server.
func NewServer(a Analytics, sessions SessionCounter, opts ...Option) *Server {
	s := &Server{
		analytics: a,
		sessions:  sessions,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with CORS, panic recovery and
// request metrics applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/analytics", s.trackEvent).Methods(http.MethodPost)
	r.HandleFunc("/analytics", s.getAnalytics).Methods(http.MethodGet)
	r.HandleFunc("/analytics/intents", s.getIntents).Methods(http.MethodGet)
	r.HandleFunc("/analytics/platforms", s.getPlatforms).Methods(http.MethodGet)
	r.HandleFunc("/analytics/hourly", s.getHourly).Methods(http.MethodGet)
	r.HandleFunc("/analytics/export", s.export).Methods(http.MethodGet)
	r.HandleFunc("/analytics/user/{userId}", s.getJourney).Methods(http.MethodGet)

	r.HandleFunc("/sessions/stats", s.sessionStats).Methods(http.MethodGet)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(zap.NewStdLog(s.logger)))

	return recovery(cors(r))
}
