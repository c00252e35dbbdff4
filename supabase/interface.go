package supabase

import (
	"context"
	"time"

	"github.com/creastat/chatstore/analytics"
)

// DailyReportsTable is the table day reports are mirrored into.
const DailyReportsTable = "analytics_daily_reports"

// Publisher mirrors finished day reports into Supabase for dashboards.
// Only aggregates are sent; raw events stay in the key-value store.
type Publisher interface {
	// PublishDailyReport upserts the report of day, keyed by its date.
	PublishDailyReport(ctx context.Context, day time.Time, report *analytics.Report) error

	// Close closes the Supabase client and releases resources
	Close() error
}

// DailyReportRow represents one row of the daily reports table
type DailyReportRow struct {
	ReportDate      string           `json:"report_date"`
	TotalEvents     int64            `json:"total_events"`
	Errors          int64            `json:"errors"`
	Events          map[string]int64 `json:"events"`
	Platforms       map[string]int64 `json:"platforms"`
	Intents         map[string]int64 `json:"intents"`
	AvgResponseTime float64          `json:"avg_response_time"`
	AvgConfidence   float64          `json:"avg_confidence"`
	PublishedAt     time.Time        `json:"published_at"`
}

// NewDailyReportRow flattens a day report into a table row.
func NewDailyReportRow(day time.Time, report *analytics.Report, publishedAt time.Time) DailyReportRow {
	return DailyReportRow{
		ReportDate:      day.UTC().Format("2006-01-02"),
		TotalEvents:     report.Metrics.TotalEvents,
		Errors:          report.Metrics.Errors,
		Events:          report.Metrics.Events,
		Platforms:       report.Metrics.Platforms,
		Intents:         report.Metrics.Intents,
		AvgResponseTime: report.Performance.AvgResponseTime,
		AvgConfidence:   report.Performance.AvgConfidence,
		PublishedAt:     publishedAt.UTC(),
	}
}
