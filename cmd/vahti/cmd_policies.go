package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Inspect governance policies",
}

var policiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered policies",
	RunE:  runPoliciesList,
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List registered database connections",
	RunE:  runConnectionsList,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
	policiesCmd.AddCommand(policiesListCmd)
	rootCmd.AddCommand(connectionsCmd)
}

func runPoliciesList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	policies, err := app.Policies.List()
	if err != nil {
		return err
	}

	for _, p := range policies {
		dbTypes := make([]string, len(p.ApplicableDBTypes))
		for i, dt := range p.ApplicableDBTypes {
			dbTypes[i] = string(dt)
		}
		fmt.Printf("%-36s %-9s %s\n", p.PolicyID, p.EnforcementLevel, strings.Join(dbTypes, ","))
	}
	fmt.Printf("\n%d policy(ies)\n", len(policies))
	return nil
}

func runConnectionsList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	conns, err := app.Registry.List()
	if err != nil {
		return err
	}

	for _, c := range conns {
		health := "never"
		if !c.LastHealthCheck.IsZero() {
			health = c.LastHealthCheck.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-24s %-12s %-11s %-8s last-check=%s\n",
			c.Name, c.DBType, c.Environment, c.Status, health)
	}
	fmt.Printf("\n%d connection(s)\n", len(conns))
	return nil
}
