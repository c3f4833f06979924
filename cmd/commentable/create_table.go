package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var createTableCmd = &cobra.Command{
	Use:   "create-table",
	Short: "Create the table and its secondary indexes",
	Long: `Create the table with its replies and reactions indexes and wait for it
to become active. An existing table is left untouched.`,
	RunE: runCreateTable,
}

func init() {
	createTableCmd.Flags().Duration("wait", 2*time.Minute, "How long to wait for the table to become active")
}

func runCreateTable(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return err
	}

	if err := a.store.Table.Provision(cmd.Context(), a.client, wait); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "table %s is active\n", a.cfg.Table)
	return nil
}
