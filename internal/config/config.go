// Package config handles configuration loading for filinglens.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"`
	SEC      SECConfig      `mapstructure:"sec"      yaml:"sec"`
	OpenFIGI OpenFIGIConfig `mapstructure:"openfigi" yaml:"openfigi"`
	Sync     SyncConfig     `mapstructure:"sync"     yaml:"sync"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// StoreConfig holds analytical store connection settings.
type StoreConfig struct {
	Database       string `mapstructure:"database"        yaml:"database"` // MotherDuck database name
	Token          string `mapstructure:"token"           yaml:"token"`
	Path           string `mapstructure:"path"            yaml:"path"` // local DuckDB file; "" with no database means in-memory
	HealthInterval int    `mapstructure:"health_interval" yaml:"health_interval"` // seconds
	MaxOpenConns   int    `mapstructure:"max_open_conns"  yaml:"max_open_conns"`
}

// Remote reports whether the store points at MotherDuck.
func (s StoreConfig) Remote() bool { return s.Database != "" }

// DSN returns the driver connection string.
func (s StoreConfig) DSN() string {
	if s.Remote() {
		return fmt.Sprintf("md:%s?motherduck_token=%s", s.Database, s.Token)
	}
	return s.Path
}

// SECConfig holds EDGAR access settings.
type SECConfig struct {
	BaseURL   string `mapstructure:"base_url"   yaml:"base_url"`
	DataURL   string `mapstructure:"data_url"   yaml:"data_url"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	FeedCount int    `mapstructure:"feed_count" yaml:"feed_count"`
}

// OpenFIGIConfig holds symbology service settings.
type OpenFIGIConfig struct {
	APIKey      string `mapstructure:"api_key"     yaml:"api_key"`
	BaseURL     string `mapstructure:"base_url"    yaml:"base_url"`
	BatchSize   int    `mapstructure:"batch_size"  yaml:"batch_size"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	MaxRetries  int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// SyncConfig holds ingestion settings.
type SyncConfig struct {
	FormTypes []string `mapstructure:"form_types" yaml:"form_types"`
	BatchSize int      `mapstructure:"batch_size" yaml:"batch_size"`
	TempDir   string   `mapstructure:"temp_dir"   yaml:"temp_dir"`
	Workers   int      `mapstructure:"workers"    yaml:"workers"`
}

// AnalysisConfig holds analytics engine settings.
type AnalysisConfig struct {
	AlertCacheTTL  int     `mapstructure:"alert_cache_ttl"  yaml:"alert_cache_ttl"` // seconds
	LookbackMonths int     `mapstructure:"lookback_months"  yaml:"lookback_months"`
	MinChange      float64 `mapstructure:"min_change"       yaml:"min_change"`
	MinStartValue  int64   `mapstructure:"min_start_value"  yaml:"min_start_value"`
	AlertLimit     int     `mapstructure:"alert_limit"      yaml:"alert_limit"`
}

// ResolverConfig holds identifier resolver settings.
type ResolverConfig struct {
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL  int `mapstructure:"cache_ttl"  yaml:"cache_ttl"` // seconds
	Workers   int `mapstructure:"workers"    yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// MetricsConfig holds the prometheus endpoint address; empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// ConfigurationError reports a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Seconds converts an integer seconds setting to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.filinglens/config.yaml (home directory)
//  3. /etc/filinglens/config.yaml (system)
//
// Environment variables override config file values.
// Format: FILINGLENS_<SECTION>_<KEY>, e.g., FILINGLENS_STORE_DATABASE
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".filinglens"))
	v.AddConfigPath("/etc/filinglens")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FILINGLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "")
	v.SetDefault("store.health_interval", 30)
	v.SetDefault("store.max_open_conns", 4)

	// EDGAR asks for a descriptive agent with a contact address and at most 10 req/s.
	v.SetDefault("sec.base_url", "https://www.sec.gov")
	v.SetDefault("sec.data_url", "https://data.sec.gov")
	v.SetDefault("sec.user_agent", "filinglens admin@example.com")
	v.SetDefault("sec.rate_limit", 10)
	v.SetDefault("sec.feed_count", 100)

	v.SetDefault("openfigi.base_url", "https://api.openfigi.com/v3/mapping")
	v.SetDefault("openfigi.batch_size", 10)
	v.SetDefault("openfigi.concurrency", 2)
	v.SetDefault("openfigi.max_retries", 5)

	v.SetDefault("sync.form_types", []string{"13F-HR", "SC 13D", "SC 13G", "4"})
	v.SetDefault("sync.batch_size", 500)
	v.SetDefault("sync.temp_dir", "")
	v.SetDefault("sync.workers", 4)

	v.SetDefault("analysis.alert_cache_ttl", 3600)
	v.SetDefault("analysis.lookback_months", 24)
	v.SetDefault("analysis.min_change", 5.0)
	v.SetDefault("analysis.min_start_value", 1_000_000)
	v.SetDefault("analysis.alert_limit", 50)

	v.SetDefault("resolver.cache_size", 10000)
	v.SetDefault("resolver.cache_ttl", 86400)
	v.SetDefault("resolver.workers", 2)
	v.SetDefault("resolver.queue_size", 256)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("FILINGLENS_STORE_TOKEN"); key != "" {
		cfg.Store.Token = key
	} else if key := os.Getenv("MOTHERDUCK_TOKEN"); key != "" && cfg.Store.Token == "" {
		cfg.Store.Token = key
	}
	if key := os.Getenv("FILINGLENS_OPENFIGI_API_KEY"); key != "" {
		cfg.OpenFIGI.APIKey = key
	}
}

// Validate checks required settings and ranges.
func (c *Config) Validate() error {
	if c.Store.Remote() && c.Store.Token == "" {
		return &ConfigurationError{Key: "store.token", Reason: "MotherDuck token is required when store.database is set"}
	}
	if c.Store.Remote() && !validDatabaseName(c.Store.Database) {
		return &ConfigurationError{Key: "store.database", Reason: "must be a plain identifier"}
	}
	if strings.TrimSpace(c.SEC.UserAgent) == "" {
		return &ConfigurationError{Key: "sec.user_agent", Reason: "EDGAR requires a User-Agent with contact details"}
	}
	if c.SEC.RateLimit < 1 || c.SEC.RateLimit > 10 {
		return &ConfigurationError{Key: "sec.rate_limit", Reason: "must be between 1 and 10"}
	}
	if c.OpenFIGI.BatchSize < 1 || c.OpenFIGI.BatchSize > 100 {
		return &ConfigurationError{Key: "openfigi.batch_size", Reason: "must be between 1 and 100"}
	}
	if c.Sync.BatchSize < 1 {
		return &ConfigurationError{Key: "sync.batch_size", Reason: "must be positive"}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ConfigurationError{Key: "logging.format", Reason: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	return nil
}

func validDatabaseName(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
