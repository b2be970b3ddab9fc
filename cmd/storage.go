package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
)

// pinger is the health probe of the active backend
type pinger interface {
	Ping(ctx context.Context) error
}

// initStorage connects the configured backend, applies its schema and
// registers it with the database package. MariaDB wins when both are set.
func initStorage(cfg *config.Config) (pinger, func(), error) {
	switch {
	case cfg.MariaDB.DSN != "":
		fmt.Println("Connecting to MariaDB...")
		if err := mariadb.Initialize(cfg.MariaDB.DSN); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		pool := mariadb.GetGlobalPool()
		return pool, func() { _ = pool.Close() }, nil
	case cfg.Database.URL != "":
		fmt.Println("Connecting to PostgreSQL...")
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		pool := postgres.GetGlobalPool()
		return pool, func() { _ = pool.Close() }, nil
	default:
		return nil, nil, &config.ConfigurationError{
			Field:  "DATABASE_URL",
			Reason: "either DATABASE_URL or MARIADB_DSN is required",
		}
	}
}
