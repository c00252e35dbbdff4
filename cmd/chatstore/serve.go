package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/httpapi"
	"github.com/creastat/chatstore/observability"
	"github.com/creastat/chatstore/session"
	"github.com/creastat/chatstore/supabase"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, expiry sweeper and report publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	observability.InitMetrics()
	a.logger.Info("starting chatstore",
		zap.String("version", Version),
		zap.String("store", a.cfg.Store.Type),
		zap.String("addr", a.cfg.HTTP.Addr))

	sweeper, err := session.NewSweeper(a.sessions, a.cfg.Session.SweepSchedule, a.cfg.Session.SweepTimeout, a.logger.Named("sweeper"))
	if err != nil {
		return err
	}
	sweeper.Start()

	publisher, sink, err := newReportPublisher(a)
	if err != nil {
		return err
	}
	if publisher != nil {
		publisher.Start()
	}

	api := httpapi.NewServer(a.engine, a.sessions,
		httpapi.WithIngestLimit(a.cfg.Analytics.IngestRate, a.cfg.Analytics.IngestBurst),
		httpapi.WithAllowedOrigins(a.cfg.HTTP.CORSOrigins),
		httpapi.WithLogger(a.logger.Named("http")),
	)
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", zap.Error(err))
	}
	sweeper.Stop(shutdownCtx)
	if publisher != nil {
		stopReportPublisher(publisher, sink, a.logger)
	}

	a.logger.Info("chatstore stopped")
	return runErr
}

// newReportPublisher schedules publishing of the previous UTC day's report
// to Supabase. It returns nils when Supabase is not configured.
func newReportPublisher(a *app) (*cron.Cron, supabase.Publisher, error) {
	if !a.cfg.Supabase.Enabled() {
		return nil, nil, nil
	}

	sink, err := supabase.New(supabase.Config{
		URL:    a.cfg.Supabase.URL,
		APIKey: a.cfg.Supabase.APIKey,
		Table:  a.cfg.Supabase.Table,
	})
	if err != nil {
		return nil, nil, err
	}

	logger := a.logger.Named("publisher")
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(a.cfg.Analytics.PublishSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := publishPreviousDay(ctx, a.engine, sink, time.Now()); err != nil {
			logger.Error("daily report publish failed", zap.Error(err))
		}
	}); err != nil {
		return nil, nil, fmt.Errorf("invalid publish schedule %q: %w", a.cfg.Analytics.PublishSchedule, err)
	}
	return c, sink, nil
}

// stopReportPublisher waits for a running publish to finish, then closes
// the sink.
func stopReportPublisher(c *cron.Cron, sink supabase.Publisher, logger *zap.Logger) {
	<-c.Stop().Done()
	if err := sink.Close(); err != nil {
		logger.Warn("closing report sink", zap.Error(err))
	}
}

// publishPreviousDay publishes the report of the UTC day before now.
func publishPreviousDay(ctx context.Context, engine *analytics.Engine, sink analytics.ReportSink, now time.Time) error {
	return engine.PublishDailyReport(ctx, sink, now.UTC().AddDate(0, 0, -1))
}
