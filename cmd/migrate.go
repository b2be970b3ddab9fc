package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Connect to the configured database (DATABASE_URL or MARIADB_DSN) and
apply any pending schema changes. The same migrations run automatically on
"serve", so this is only needed to prepare a database ahead of time.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	pinger, closeStorage, err := initStorage(config.Load())
	if err != nil {
		return err
	}
	defer closeStorage()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}

	if pool, ok := pinger.(*postgres.Pool); ok {
		applied, err := pool.MigrationsApplied(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Applied migrations: %d\n", len(applied))
		for _, name := range applied {
			fmt.Printf("  %s\n", name)
		}
	}
	fmt.Printf("Schema of the %s backend is up to date\n", database.BackendName())
	return nil
}
