package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/creastat/chatstore"
)

// ExportAnalytics serializes the report of period as JSON or as a flat
// Metric,Value CSV table.
func (e *Engine) ExportAnalytics(ctx context.Context, period Period, format Format) (string, error) {
	if format != FormatJSON && format != FormatCSV {
		return "", fmt.Errorf("%w: unknown export format %q", chatstore.ErrInvalidInput, format)
	}

	report, err := e.GetAnalytics(ctx, period)
	if err != nil {
		return "", fmt.Errorf("%w: %w", chatstore.ErrExportFailure, err)
	}

	var out []byte
	if format == FormatCSV {
		out, err = reportCSV(report)
	} else {
		out, err = json.MarshalIndent(report, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %w", chatstore.ErrExportFailure, format, err)
	}
	return string(out), nil
}

func reportCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"Metric", "Value"},
		{"Period", string(r.Period)},
		{"Total Events", strconv.FormatInt(r.Metrics.TotalEvents, 10)},
		{"Errors", strconv.FormatInt(r.Metrics.Errors, 10)},
		{"Avg Response Time (ms)", strconv.FormatFloat(r.Performance.AvgResponseTime, 'f', 2, 64)},
		{"Avg Confidence", strconv.FormatFloat(r.Performance.AvgConfidence, 'f', 4, 64)},
	}
	rows = appendCounterRows(rows, "Event", r.Metrics.Events)
	rows = appendCounterRows(rows, "Platform", r.Metrics.Platforms)
	rows = appendCounterRows(rows, "Intent", r.Metrics.Intents)

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendCounterRows(rows [][]string, label string, counters map[string]int64) [][]string {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{label + ": " + name, strconv.FormatInt(counters[name], 10)})
	}
	return rows
}
