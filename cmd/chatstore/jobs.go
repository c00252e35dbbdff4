package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/session"
)

func newSweepCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			sweeper, err := session.NewSweeper(a.sessions, "", a.cfg.Session.SweepTimeout, a.logger.Named("sweeper"))
			if err != nil {
				return err
			}
			removed, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("sweep complete", zap.Int("removed", removed))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
			return err
		},
	}
}

func newExportCmd(configFile *string) *cobra.Command {
	var period, format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the analytics report of a period as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := analytics.ParsePeriod(period)
			if err != nil {
				return err
			}
			f, err := analytics.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.engine.ExportAnalytics(cmd.Context(), p, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&period, "period", "day", "report period: day, week or month")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	return cmd
}
