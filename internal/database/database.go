package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/killallgit/player-api/pkg/config"
)

// DB wraps a *gorm.DB connection to one SQLite file.
type DB struct {
	*gorm.DB
}

// Handles bundles the two independent database connections the marker
// core depends on: the foreign library database it only ever reads and
// writes through an Adapter (never migrates), and its own action log
// side database, which it owns outright.
type Handles struct {
	Library   *DB
	ActionLog *DB
}

// Initialize creates a new database connection with the provided configuration
func Initialize(dbPath string, verbose bool) (*DB, error) {
	if dbPath != ":memory:" && dbPath != "" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	logLevel := logger.Error
	if verbose {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is working
func (db *DB) HealthCheck() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// AutoMigrate runs GORM auto migration for the provided models
func (db *DB) AutoMigrate(models ...any) error {
	if err := db.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	log.Printf("[INFO] successfully migrated %d model(s)", len(models))
	return nil
}

// InitializeLibrary opens the foreign library database described by
// config.Database. The marker core never auto-migrates this connection:
// its schema belongs to the application that owns the media library,
// and component A (the Adapter) only ever reads and writes rows within
// that existing schema.
func InitializeLibrary(cfg *config.Config) (*DB, error) {
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database path is not configured")
	}
	return Initialize(cfg.Database.Path, cfg.Database.Verbose)
}

// InitializeActionLog opens the service's own side database (component
// B) backing the Action Log and Purge Reconciler. Unlike the library
// database, this schema is owned outright; this function only opens the
// handle, and InitializeWithMigrations is what auto-migrates it.
func InitializeActionLog(cfg *config.Config) (*DB, error) {
	if cfg.Markers.DatabasePath == "" {
		return nil, fmt.Errorf("markers database path is not configured")
	}
	return Initialize(cfg.Markers.DatabasePath, cfg.Database.Verbose)
}

// InitializeWithMigrations loads config (if not already loaded),
// opens both the library and action log databases, and migrates the
// action log schema. It leaves the library database schema untouched.
func InitializeWithMigrations(actionLogModels ...any) (*Handles, error) {
	if !config.IsInitialized() {
		if err := config.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize config: %w", err)
		}
	}

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	library, err := InitializeLibrary(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	actionLog, err := InitializeActionLog(cfg)
	if err != nil {
		library.Close()
		return nil, fmt.Errorf("failed to open action log database: %w", err)
	}

	if len(actionLogModels) > 0 {
		if err := actionLog.AutoMigrate(actionLogModels...); err != nil {
			library.Close()
			actionLog.Close()
			return nil, err
		}
	}

	return &Handles{Library: library, ActionLog: actionLog}, nil
}

// Close closes both connections, returning the first error encountered.
func (h *Handles) Close() error {
	var firstErr error
	if h.Library != nil {
		if err := h.Library.Close(); err != nil {
			firstErr = err
		}
	}
	if h.ActionLog != nil {
		if err := h.ActionLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
