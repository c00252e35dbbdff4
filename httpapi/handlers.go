package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/creastat/chatstore"
	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/observability"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().Unix(),
		"service":   "chatstore",
	})
}

// trackEvent always acknowledges with 200. Malformed and rate-limited
// events are dropped without telling the caller anything beyond the
// message.
func (s *Server) trackEvent(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		observability.RecordEventDropped()
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "dropped"})
		return
	}

	var ev analytics.Event
	body := http.MaxBytesReader(w, r.Body, maxEventBytes)
	if err := json.NewDecoder(body).Decode(&ev); err != nil {
		s.logger.Warn("malformed analytics event ignored", zap.Error(err))
		observability.RecordTrackFailure("decode")
		writeJSON(w, http.StatusOK, Response{Success: false, Message: "ignored"})
		return
	}

	s.analytics.TrackEvent(r.Context(), ev)
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "tracked"})
}

func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	period, err := analytics.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := s.analytics.GetAnalytics(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, report)
}

func (s *Server) getIntents(w http.ResponseWriter, r *http.Request) {
	period, err := analytics.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.analytics.GetIntentPerformance(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, stats)
}

func (s *Server) getPlatforms(w http.ResponseWriter, r *http.Request) {
	period, err := analytics.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.analytics.GetPlatformUsage(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, stats)
}

func (s *Server) getHourly(w http.ResponseWriter, r *http.Request) {
	day := s.now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: date %q is not YYYY-MM-DD", chatstore.ErrInvalidInput, raw))
			return
		}
		day = parsed
	}
	hours, err := s.analytics.GetHourlyActivity(r.Context(), day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, hours)
}

func (s *Server) getJourney(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	journey, err := s.analytics.GetUserJourney(r.Context(), userID, r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, journey)
}

// export writes the serialized report as the raw body. Any failure after
// the arguments parse is a 500.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := analytics.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, err)
		return
	}
	format, err := analytics.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := s.analytics.ExportAnalytics(r.Context(), period, format)
	if err != nil {
		s.logger.Error("analytics export failed", zap.String("period", string(period)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Message: "failed to export analytics"})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == analytics.FormatCSV {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="analytics-%s.csv"`, period))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.sessions.Total(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	active, err := s.sessions.Active(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]int{"total": total, "active": active})
}
