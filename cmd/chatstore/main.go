package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "chatstore",
		Short:         "Chat session store and analytics service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CHATSTORE_CONFIG"), "path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configFile),
		newSweepCmd(&configFile),
		newExportCmd(&configFile),
	)
	return root
}
