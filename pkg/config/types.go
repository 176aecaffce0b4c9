package config

import "time"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Markers    MarkersConfig    `mapstructure:"markers"`
	Security   SecurityConfig   `mapstructure:"security"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Features   FeaturesConfig   `mapstructure:"features"`
}

// ServerConfig contains HTTP server settings for the transport mount
// that exposes the (transport-independent) Request Dispatcher.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
}

// DatabaseConfig describes the foreign library database (component A).
// The service reads and writes through the Adapter only; it never
// migrates this schema across incompatible versions.
type DatabaseConfig struct {
	Path                  string        `mapstructure:"path"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
	EnableWAL             bool          `mapstructure:"enable_wal"`
	EnableForeignKeys     bool          `mapstructure:"enable_foreign_keys"`
	LogQueries            bool          `mapstructure:"log_queries"`
	Verbose               bool          `mapstructure:"verbose"`
}

// MarkersConfig contains the marker-core-specific options spec.md §6
// enumerates.
type MarkersConfig struct {
	// DatabasePath is the configurable path of the SQLite file backing
	// the side Action Log Store (component B).
	DatabasePath string `mapstructure:"database_path"`
	// MetadataPath points at ancillary per-item metadata owned by an
	// external collaborator; named only by the contract the core
	// consumes.
	MetadataPath string `mapstructure:"metadata_path"`
	// BackupActions enables the Action Log and Purge Reconciler; when
	// false, purge operations fail with FeatureDisabled.
	BackupActions bool `mapstructure:"backup_actions"`
	// ExtendedStats enables the Marker Cache; when false, get_stats
	// falls back to a live scan.
	ExtendedStats bool `mapstructure:"extended_stats"`
}

// SecurityConfig contains HTTP transport security settings.
type SecurityConfig struct {
	EnableCORS      bool     `mapstructure:"enable_cors"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	CORSMethods     []string `mapstructure:"cors_methods"`
	CORSHeaders     []string `mapstructure:"cors_headers"`
	EnableRequestID bool     `mapstructure:"enable_request_id"`
	EnableRecovery  bool     `mapstructure:"enable_recovery"`
	RateLimitRPS    int      `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst"`
}

// LoggingConfig contains logging settings. The core logs through the
// standard library "log" package (see DESIGN.md) without consulting
// these settings; only Level is read, by the HTTP transport, where
// "debug" selects Gin's debug mode. Format and Output are not read.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MonitoringConfig contains health/readiness settings.
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	HealthPath  string `mapstructure:"health_path"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// FeaturesConfig contains flags owned by external collaborators (out
// of the core's scope, named only by the contract it consumes).
type FeaturesConfig struct {
	PreviewThumbnails bool `mapstructure:"preview_thumbnails"`
	AutoOpen          bool `mapstructure:"auto_open"`
}
