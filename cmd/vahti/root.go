package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/vahti/bootstrap"
	"github.com/yairfalse/vahti/config"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "vahti",
		Short: "Database Governance Watchman",
		Long: `Vahti - Database Governance Watchman

Vahti evaluates governance policies against the databases your services
depend on. It inspects each registered connection read-only, runs the
applicable policy rules over the captured state, and records violations
in a deduplicated ledger with a full audit trail.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Vahti {{.Version}} - Database Governance Watchman
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vahti.yaml", "Path to config file")
}

// loadApp builds the application from the configured file
func loadApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg)
}
