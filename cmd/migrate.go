package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/killallgit/player-api/internal/database"
	"github.com/killallgit/player-api/internal/services/actionlog"
)

// migrateCmd auto-migrates the action log's own schema. The library
// database is never migrated by this service: its schema belongs to
// the application that owns the media library, and the Adapter only
// ever reads and writes within whatever schema is already there.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Auto-migrate the action log database",
	Long: `Auto-migrate the action log side database backing the Action Log
and Purge Reconciler. The library database is never migrated here.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	handles, err := database.InitializeWithMigrations(actionlog.Models()...)
	if err != nil {
		return fmt.Errorf("migrating action log database: %w", err)
	}
	defer handles.Close()

	fmt.Println("Action log database migrated successfully")
	return nil
}
