package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSweep(t *testing.T) {
	okBefore := testutil.ToFloat64(sweepRunsTotal.WithLabelValues("success"))
	errBefore := testutil.ToFloat64(sweepRunsTotal.WithLabelValues("error"))
	removedBefore := testutil.ToFloat64(sweepRemovedTotal)

	RecordSweep(3, time.Millisecond, nil)
	RecordSweep(1, time.Millisecond, errors.New("store down"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(sweepRunsTotal.WithLabelValues("success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(sweepRunsTotal.WithLabelValues("error")))
	assert.Equal(t, removedBefore+4, testutil.ToFloat64(sweepRemovedTotal))
}

func TestIngestionCounters(t *testing.T) {
	tracked := testutil.ToFloat64(analyticsEventsTotal.WithLabelValues("nlp_processed"))
	failed := testutil.ToFloat64(analyticsTrackFailures.WithLabelValues("counter"))
	dropped := testutil.ToFloat64(analyticsEventsDropped)

	RecordEventTracked("nlp_processed")
	RecordTrackFailure("counter")
	RecordEventDropped()

	assert.Equal(t, tracked+1, testutil.ToFloat64(analyticsEventsTotal.WithLabelValues("nlp_processed")))
	assert.Equal(t, failed+1, testutil.ToFloat64(analyticsTrackFailures.WithLabelValues("counter")))
	assert.Equal(t, dropped+1, testutil.ToFloat64(analyticsEventsDropped))
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	InitMetrics()
	InitMetrics() // second call is a no-op

	RecordHTTPRequest(http.MethodGet, "/analytics", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `chatstore_http_requests_total{method="GET",route="/analytics",status="200"}`)
}
