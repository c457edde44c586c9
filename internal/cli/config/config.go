// Package config loads the facet.yml configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/facet-db/facet/internal/hierarchy"
)

// Config represents the facet configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Hierarchy HierarchyConfig `mapstructure:"hierarchy"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// DatabaseConfig selects the aggregate and document backend. Driver is
// "postgres", "sqlite", or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
	Path   string `mapstructure:"path"`
}

// RedisConfig configures the counter store and schema cache. When disabled
// both fall back to the database backend.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Prefix    string        `mapstructure:"prefix"`
	SchemaTTL time.Duration `mapstructure:"schema_ttl"`
}

// ServerConfig represents the HTTP listener configuration. RateLimit is
// requests per caller per minute; zero disables limiting.
type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	RateLimit int    `mapstructure:"rate_limit"`
}

// SerialConfig bounds the optimistic retry loop of the serial generator
type SerialConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

// HierarchyConfig selects the inheritance conflict policy
type HierarchyConfig struct {
	ConflictPolicy string `mapstructure:"conflict_policy"`
}

// AuthConfig configures bearer-token auth. An empty secret disables auth.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// Load loads the configuration from facet.yml or facet.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.path", "facet.db")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "facet:")
	v.SetDefault("redis.schema_ttl", "5m")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("serial.max_attempts", 5)
	v.SetDefault("hierarchy.conflict_policy", "merge")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetConfigName("facet")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FACET")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	cfg, err := Load()
	if err != nil {
		return ""
	}
	return cfg.Database.URL
}

// InProject checks if the current directory holds a facet configuration
func InProject() bool {
	if _, err := os.Stat("facet.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("facet.yaml"); err == nil {
		return true
	}
	return false
}

// GetProjectRoot finds the nearest ancestor directory holding facet.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "facet.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "facet.yaml")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a facet project (no facet.yml found)")
		}
		dir = parent
	}
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be one of memory, sqlite, postgres, got: %s", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" && os.Getenv("DATABASE_URL") == "" {
		return fmt.Errorf("database.url is required for the postgres driver")
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required for the sqlite driver")
	}
	if cfg.Serial.MaxAttempts < 0 {
		return fmt.Errorf("serial.max_attempts must not be negative, got: %d", cfg.Serial.MaxAttempts)
	}
	if _, err := hierarchy.ParseConflictPolicy(cfg.Hierarchy.ConflictPolicy); err != nil {
		return fmt.Errorf("hierarchy.conflict_policy: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got: %d", cfg.Server.RateLimit)
	}
	return nil
}
