package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/vahti/storage"
	"github.com/yairfalse/vahti/types"
)

var (
	violationsDatabase string
	violationsPolicy   string
	violationsStatus   string
	violationsActor    string
)

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "Inspect and manage recorded violations",
}

var violationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded violations",
	Example: `  vahti violations list
  vahti violations list --database orders_db --status open`,
	RunE: runViolationsList,
}

var violationsTransitionCmd = &cobra.Command{
	Use:   "transition <violation-id> <status>",
	Short: "Move a violation to a new status",
	Long: `Move a violation through its lifecycle.

Open violations can move to in_progress, resolved or ignored;
in-progress ones to resolved or ignored. Resolved and ignored are
terminal. Resolving records who resolved it (--actor).`,
	Example: `  vahti violations transition 4f2c... in_progress
  vahti violations transition 4f2c... resolved --actor dba@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runViolationsTransition,
}

func init() {
	rootCmd.AddCommand(violationsCmd)
	violationsCmd.AddCommand(violationsListCmd)
	violationsCmd.AddCommand(violationsTransitionCmd)

	violationsListCmd.Flags().StringVar(&violationsDatabase, "database", "", "Filter by database name")
	violationsListCmd.Flags().StringVar(&violationsPolicy, "policy", "", "Filter by policy id")
	violationsListCmd.Flags().StringVar(&violationsStatus, "status", "", "Filter by status")
	violationsTransitionCmd.Flags().StringVar(&violationsActor, "actor", "", "Who performs the transition")
}

func runViolationsList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	violations, err := app.Ledger.List(storage.ViolationFilter{
		DatabaseName: violationsDatabase,
		PolicyID:     violationsPolicy,
		Status:       types.ViolationStatus(violationsStatus),
	})
	if err != nil {
		return err
	}

	if len(violations) == 0 {
		fmt.Println("No violations on record.")
		return nil
	}

	for _, v := range violations {
		fmt.Printf("%s  %-11s %-8s %-24s %s\n",
			v.ViolationID, v.Status, v.Severity, v.DatabaseName, v.Description)
	}
	fmt.Printf("\n%d violation(s)\n", len(violations))
	return nil
}

func runViolationsTransition(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	violationID, status := args[0], types.ViolationStatus(args[1])
	v, err := app.Ledger.Transition(ctx, violationID, status, violationsActor)
	if err != nil {
		return err
	}

	if err := app.Emitter.Record(ctx, "governance_violation",
		types.ActionViolationTransition, v.DatabaseName, map[string]any{
			"violation_id": v.ViolationID,
			"status":       string(v.Status),
			"actor":        violationsActor,
		}); err != nil {
		return err
	}

	fmt.Printf("Violation %s is now %s\n", v.ViolationID, v.Status)
	return nil
}
