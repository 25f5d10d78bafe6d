package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/vahti/engine"
)

// auditCmd runs a one-shot governance evaluation
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Evaluate governance policies against all active connections",
	Long: `Run one governance evaluation pass over every active connection.

Each connection is inspected read-only, the applicable policies are
evaluated against the captured state, and flagged findings land in the
violation ledger. A non-zero exit code means at least one connection
could not be evaluated.`,
	Example: `  vahti audit
  vahti audit --config /etc/vahti/vahti.yaml`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	results, err := app.Engine.EvaluateAll(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch r.State {
		case engine.StateCompleted:
			fmt.Printf("✓ %-24s policies=%d findings=%d flagged=%d (%s)\n",
				r.Connection, r.Policies, r.Findings, r.Flagged, r.Duration.Round(time.Millisecond))
		default:
			failed++
			fmt.Printf("✗ %-24s %v\n", r.Connection, r.Err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d connections failed evaluation", failed, len(results))
	}
	return nil
}
