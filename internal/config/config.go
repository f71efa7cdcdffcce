// Package config provides configuration management for the scanner application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"retest-scanner/internal/analysis/indicators"
	"retest-scanner/internal/scan"
)

// Config holds all application configuration.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ScanConfig holds the default scan parameters. These seed the CLI
// flags; every one of them can be overridden per invocation.
type ScanConfig struct {
	Tolerance       float64 `mapstructure:"tolerance"`
	MaxRetestWindow int     `mapstructure:"max_retest_window"`
	TakeoffWindow   int     `mapstructure:"takeoff_window"`
	TakeoffPct      float64 `mapstructure:"takeoff_pct"`
	ATREnabled      bool    `mapstructure:"atr_enabled"`
	ATRMult         float64 `mapstructure:"atr_mult"`
	ATRPeriod       int     `mapstructure:"atr_period"`
}

// FeedConfig holds market data provider configuration.
type FeedConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DefaultRange    string        `mapstructure:"default_range"`
	DefaultInterval string        `mapstructure:"default_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/retest-scanner"
	}
	return filepath.Join(home, ".config", "retest-scanner")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// Missing config is fine; defaults apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	p := scan.DefaultParams()
	v.SetDefault("scan.tolerance", p.Tolerance)
	v.SetDefault("scan.max_retest_window", p.MaxRetestWindow)
	v.SetDefault("scan.takeoff_window", p.TakeoffWindow)
	v.SetDefault("scan.takeoff_pct", p.TakeoffPct)
	v.SetDefault("scan.atr_enabled", p.ATREnabled)
	v.SetDefault("scan.atr_mult", p.ATRMult)
	v.SetDefault("scan.atr_period", indicators.DefaultATRPeriod)

	v.SetDefault("feed.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("feed.timeout", 30*time.Second)
	v.SetDefault("feed.default_range", "1y")
	v.SetDefault("feed.default_interval", "1d")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RETEST_FEED_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("RETEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Scan.Tolerance <= 0 {
		return fmt.Errorf("scan.tolerance must be > 0, got %v", c.Scan.Tolerance)
	}
	if c.Scan.MaxRetestWindow <= 0 {
		return fmt.Errorf("scan.max_retest_window must be > 0, got %d", c.Scan.MaxRetestWindow)
	}
	if c.Scan.TakeoffWindow <= 0 {
		return fmt.Errorf("scan.takeoff_window must be > 0, got %d", c.Scan.TakeoffWindow)
	}
	if c.Scan.TakeoffPct < 0 {
		return fmt.Errorf("scan.takeoff_pct must be >= 0, got %v", c.Scan.TakeoffPct)
	}
	if c.Scan.ATRPeriod <= 0 {
		return fmt.Errorf("scan.atr_period must be > 0, got %d", c.Scan.ATRPeriod)
	}
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url must not be empty")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be > 0, got %v", c.Feed.Timeout)
	}
	return nil
}
