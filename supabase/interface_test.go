package supabase

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatstore/analytics"
)

func TestNewDailyReportRow(t *testing.T) {
	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	published := time.Date(2026, 10, 15, 0, 5, 0, 0, time.UTC)
	report := &analytics.Report{
		Period: analytics.PeriodDay,
		Metrics: analytics.Metrics{
			TotalEvents: 12,
			Errors:      1,
			Events:      map[string]int64{"nlp_processed": 6, "response_generated": 6},
			Platforms:   map[string]int64{"web": 12},
			Intents:     map[string]int64{"send_money": 4},
		},
		Performance: analytics.Performance{AvgResponseTime: 230.5, AvgConfidence: 0.82},
	}

	row := NewDailyReportRow(day, report, published)

	assert.Equal(t, "2026-10-14", row.ReportDate)
	assert.Equal(t, int64(12), row.TotalEvents)
	assert.Equal(t, int64(4), row.Intents["send_money"])

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"report_date":"2026-10-14"`)
	assert.Contains(t, string(data), `"avg_confidence":0.82`)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{APIKey: "key"})
	assert.Error(t, err)

	_, err = New(Config{URL: "https://example.supabase.co"})
	assert.Error(t, err)
}
