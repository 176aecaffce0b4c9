package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once        sync.Once
	initErr     error
	initialized bool
)

// Init initializes the configuration system
// This should be called once at application startup
func Init() error {
	once.Do(func() {
		// Set default values
		setDefaults()

		// Set up environment variable reading for overrides
		viper.SetEnvPrefix("KILLALL")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		// Load config from fixed location (cleaned for safety)
		configPath := filepath.Clean("./config/settings.yaml")
		viper.SetConfigFile(configPath)

		// Try to read the config file
		if err := viper.ReadInConfig(); err != nil {
			// If the config file doesn't exist, just use defaults and env vars
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
			// Config file doesn't exist, which is fine - we'll use defaults
		}

		// Validate the configuration
		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}

		initialized = true
	})

	return initErr
}

// IsInitialized reports whether Init has completed successfully. Useful
// for call sites (like database bootstrapping) that can initialize
// config lazily on first use.
func IsInitialized() bool {
	return initialized
}

// GetConfig returns the current configuration as a struct
// Init() must be called before using this
func GetConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a config value by key using Viper directly
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a time.Duration config value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		fmt.Println("Warning: no library database path configured")
	}

	rps := viper.GetInt("security.rate_limit_rps")
	if rps < 0 {
		return fmt.Errorf("invalid security.rate_limit_rps: %d", rps)
	}

	burst := viper.GetInt("security.rate_limit_burst")
	if burst < 0 {
		return fmt.Errorf("invalid security.rate_limit_burst: %d", burst)
	}

	if !viper.GetBool("markers.backup_actions") {
		fmt.Println("Warning: markers.backup_actions is disabled, purge/restore endpoints will report FeatureDisabled")
	}

	return nil
}

// Validate validates a Config struct (for testing)
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Security.RateLimitRPS < 0 {
		return fmt.Errorf("invalid security.rate_limit_rps: %d", c.Security.RateLimitRPS)
	}

	if c.Security.RateLimitBurst < 0 {
		return fmt.Errorf("invalid security.rate_limit_burst: %d", c.Security.RateLimitBurst)
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Environment defaults
	viper.SetDefault("environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_header_bytes", 1048576)

	// Database defaults (the foreign library database, component A)
	viper.SetDefault("database.path", "./data/library.db")
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.max_idle_connections", 5)
	viper.SetDefault("database.connection_max_lifetime", 30*time.Minute)
	viper.SetDefault("database.enable_wal", true)
	viper.SetDefault("database.enable_foreign_keys", true)
	viper.SetDefault("database.log_queries", false)
	viper.SetDefault("database.verbose", false)

	// Marker-core defaults (action log side database, cache/purge switches)
	viper.SetDefault("markers.database_path", "./data/markers.db")
	viper.SetDefault("markers.metadata_path", "./data/metadata")
	viper.SetDefault("markers.backup_actions", true)
	viper.SetDefault("markers.extended_stats", true)

	// Security defaults
	viper.SetDefault("security.enable_cors", true)
	viper.SetDefault("security.cors_origins", []string{"*"})
	viper.SetDefault("security.cors_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors_headers", []string{"Content-Type", "Authorization"})
	viper.SetDefault("security.enable_request_id", true)
	viper.SetDefault("security.enable_recovery", true)
	viper.SetDefault("security.rate_limit_rps", 20)
	viper.SetDefault("security.rate_limit_burst", 40)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.health_path", "/health")
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Features defaults (owned by external collaborators; named only by
	// the contract the core consumes)
	viper.SetDefault("features.preview_thumbnails", false)
	viper.SetDefault("features.auto_open", false)
}
