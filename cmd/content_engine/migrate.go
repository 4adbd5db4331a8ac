package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-engine/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database migrations",
	Long:      `Apply (up) or roll back (down) the embedded SQL migrations against DATABASE_URL.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{db.MigrateUp, db.MigrateDown},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	applied, err := db.Migrate(databaseURL, args[0])
	if err != nil {
		return err
	}
	if !applied {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to apply")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", args[0])
	return nil
}
