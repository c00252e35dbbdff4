package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ReportSink receives finished day reports, e.g. a dashboard table.
type ReportSink interface {
	PublishDailyReport(ctx context.Context, day time.Time, report *Report) error
}

// PublishDailyReport sends the report of the UTC day containing day to sink.
func (e *Engine) PublishDailyReport(ctx context.Context, sink ReportSink, day time.Time) error {
	report, err := e.GetDailyReport(ctx, day)
	if err != nil {
		return err
	}
	if err := sink.PublishDailyReport(ctx, startOfDay(day), report); err != nil {
		return fmt.Errorf("publish report for %s: %w", dayStamp(day), err)
	}
	e.logger.Info("daily analytics report published",
		zap.String("day", dayStamp(day)),
		zap.Int64("total_events", report.Metrics.TotalEvents))
	return nil
}
