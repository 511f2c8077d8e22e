package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	pebblestore "github.com/procq/procq/internal/storage/pebble"
)

// Config is the top-level runtime configuration.
type Config struct {
	// DataDir is the root directory for the Pebble database.
	DataDir string `mapstructure:"data_dir"`
	// Sync is the WAL durability mode: always, interval, or never.
	Sync string `mapstructure:"sync"`
	// SyncInterval is the coalescing window when Sync is "interval".
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	WorkersPerType int           `mapstructure:"workers_per_type"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
	StoreBackoff   time.Duration `mapstructure:"store_backoff"`
	StatusTTL      time.Duration `mapstructure:"status_ttl"`
	LeaseSlack     time.Duration `mapstructure:"lease_slack"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		Sync:           "always",
		SyncInterval:   5 * time.Millisecond,
		WorkersPerType: 4,
		PollInterval:   time.Second,
		TaskTimeout:    300 * time.Second,
		StoreBackoff:   5 * time.Second,
		StatusTTL:      time.Hour,
		LeaseSlack:     30 * time.Second,
		ReapInterval:   15 * time.Second,
		SweepInterval:  time.Minute,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// DefaultDataDir is the database location when none is configured.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "procq-data"
	}
	return filepath.Join(home, ".procq", "data")
}

// Load builds a Config from defaults, an optional config file, and
// PROCQ_* environment variables.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("sync", def.Sync)
	v.SetDefault("sync_interval", def.SyncInterval)
	v.SetDefault("workers_per_type", def.WorkersPerType)
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("task_timeout", def.TaskTimeout)
	v.SetDefault("store_backoff", def.StoreBackoff)
	v.SetDefault("status_ttl", def.StatusTTL)
	v.SetDefault("lease_slack", def.LeaseSlack)
	v.SetDefault("reap_interval", def.ReapInterval)
	v.SetDefault("sweep_interval", def.SweepInterval)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetEnvPrefix("PROCQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot operate with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if _, err := pebblestore.ParseSyncMode(c.Sync); err != nil {
		return fmt.Errorf("config: sync: %w", err)
	}
	if c.WorkersPerType <= 0 {
		return fmt.Errorf("config: workers_per_type must be positive, got %d", c.WorkersPerType)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("config: task_timeout must be positive")
	}
	if c.StatusTTL <= 0 {
		return fmt.Errorf("config: status_ttl must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config: log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}
