// Package config loads procview settings from defaults, an optional config
// file and PROCVIEW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"procview/internal/logger"
)

const envPrefix = "PROCVIEW"

const (
	defaultHighlightDuration = time.Second
	defaultProcessInterval   = time.Second
	defaultServiceInterval   = 2 * time.Second
	defaultLogLevel          = "info"
)

// Config aggregates every tunable of the CLI, daemon and TUI.
type Config struct {
	Highlight HighlightConfig `mapstructure:"highlight"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// HighlightConfig is the settings surface for transient row styling.
type HighlightConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	Enabled  bool          `mapstructure:"enabled"`
}

type ProvidersConfig struct {
	Process ProviderConfig `mapstructure:"process"`
	Service ProviderConfig `mapstructure:"service"`
}

type ProviderConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Logger converts the section into logger settings.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{
		File:       c.File,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

type MetricsConfig struct {
	// Addr is the listen address of the Prometheus endpoint; empty disables it.
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Highlight: HighlightConfig{Duration: defaultHighlightDuration, Enabled: true},
		Providers: ProvidersConfig{
			Process: ProviderConfig{Interval: defaultProcessInterval, Enabled: true},
			Service: ProviderConfig{Interval: defaultServiceInterval, Enabled: true},
		},
		Log: LogConfig{
			Level:      defaultLogLevel,
			MaxSizeMB:  logger.DefaultMaxSizeMB,
			MaxBackups: logger.DefaultMaxBackups,
			MaxAgeDays: logger.DefaultMaxAgeDays,
		},
	}
}

// Load builds a Config from an optional file path (yaml, toml or json by
// extension) plus environment overrides such as PROCVIEW_HIGHLIGHT_DURATION.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Default(), fmt.Errorf("load config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("highlight.duration", d.Highlight.Duration)
	v.SetDefault("highlight.enabled", d.Highlight.Enabled)
	v.SetDefault("providers.process.interval", d.Providers.Process.Interval)
	v.SetDefault("providers.process.enabled", d.Providers.Process.Enabled)
	v.SetDefault("providers.service.interval", d.Providers.Service.Interval)
	v.SetDefault("providers.service.enabled", d.Providers.Service.Enabled)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Validate rejects non-positive durations and unknown log levels.
func (c Config) Validate() error {
	if c.Highlight.Duration <= 0 {
		return errors.New("highlight.duration must be > 0")
	}
	if c.Providers.Process.Interval <= 0 {
		return errors.New("providers.process.interval must be > 0")
	}
	if c.Providers.Service.Interval <= 0 {
		return errors.New("providers.service.interval must be > 0")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
