package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/creastat/chatstore/analytics"
)

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string
	Table  string // Default: DailyReportsTable
}

// Client implements the Publisher interface using Supabase
type Client struct {
	client *supabase.Client
	table  string
	now    func() time.Time
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	if cfg.Table == "" {
		cfg.Table = DailyReportsTable
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client: client,
		table:  cfg.Table,
		now:    time.Now,
	}, nil
}

// PublishDailyReport implements Publisher.
// Re-publishing a day overwrites its row.
func (c *Client) PublishDailyReport(ctx context.Context, day time.Time, report *analytics.Report) error {
	row := NewDailyReportRow(day, report, c.now())

	_, _, err := c.client.From(c.table).
		Upsert(row, "report_date", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert daily report %s: %w", row.ReportDate, err)
	}
	return nil
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// Compile-time checks
var (
	_ Publisher            = (*Client)(nil)
	_ analytics.ReportSink = (*Client)(nil)
)
