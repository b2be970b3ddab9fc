package mariadb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Pool manages a MariaDB connection through gorm.
type Pool struct {
	db *gorm.DB
}

var (
	globalPool *Pool
	poolMu     sync.RWMutex
)

// normalizeDSN forces the driver options the repositories rely on:
// DATETIME columns scanned into time.Time, stored and read as UTC.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewPool opens a MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}
	normalized, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.Open(normalized), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get MariaDB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Migrate creates or updates the identities and attendance tables.
func (p *Pool) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&identityModel{}, &attendanceModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (p *Pool) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// SetGlobalPool sets the global pool instance and registers the backend.
func SetGlobalPool(p *Pool) {
	poolMu.Lock()
	defer poolMu.Unlock()
	globalPool = p

	database.RegisterBackend("mariadb",
		func() database.GalleryWriter { return NewIdentityRepository(p) },
		func() database.LedgerWriter { return NewAttendanceRepository(p) },
	)
}

// GetGlobalPool returns the global pool instance.
func GetGlobalPool() *Pool {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return globalPool
}

// Initialize connects to MariaDB, migrates the schema and registers it as
// the active storage backend.
func Initialize(dsn string) error {
	pool, err := NewPool(dsn)
	if err != nil {
		return fmt.Errorf("failed to create MariaDB pool: %w", err)
	}
	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	SetGlobalPool(pool)
	return nil
}
