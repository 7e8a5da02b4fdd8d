package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/migrate"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := a.connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := data.RunMigrations(ctx, db, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			cmd.Println("migrations complete")
			return nil
		},
	}
	cmd.AddCommand(newMigrateStatusCmd(a))
	return cmd
}

func newMigrateStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List embedded migrations and whether each is applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := a.connectDB(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			all, err := migrate.Migrations()
			if err != nil {
				return err
			}
			pending, err := migrate.Pending(ctx, db)
			if err != nil {
				return err
			}
			return printMigrationStatus(cmd, all, pending)
		},
	}
}

func printMigrationStatus(cmd *cobra.Command, all, pending []migrate.Migration) error {
	isPending := make(map[string]bool, len(pending))
	for _, m := range pending {
		isPending[m.Version] = true
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATUS")
	for _, m := range all {
		status := "applied"
		if isPending[m.Version] {
			status = "pending"
		}
		fmt.Fprintf(tw, "%s\t%s\n", m.Version, status)
	}
	return tw.Flush()
}
