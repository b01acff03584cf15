// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs. It is constructed once at process
// start and passed by reference into the components that need it; there is
// no ambient global.
type Config struct {
	Data          DataConfig    `mapstructure:"data"`
	Intercommerce PortalConfig  `mapstructure:"intercommerce"`
	VBS           PortalConfig  `mapstructure:"vbs"`
	Timeouts      TimeoutConfig `mapstructure:"timeouts"`
	Login         LoginConfig   `mapstructure:"login"`
	Metrics       MetricsConfig `mapstructure:"metrics"`
	Logging       LoggingConfig `mapstructure:"logging"`
}

// DataConfig sets the filesystem layout for downloads and cached rows.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// DocumentsDir is the parent of all per-date-window save directories.
func (d DataConfig) DocumentsDir() string {
	return filepath.Join(d.Dir, "documents")
}

// PortalConfig holds credentials and URLs for one third-party portal.
// Branches maps a company branch name to its listing URL and is only
// populated for the customs brokerage portal.
type PortalConfig struct {
	BaseURL  string            `mapstructure:"base_url"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Branches map[string]string `mapstructure:"branches"`
}

// BranchURL resolves the listing URL for a branch.
func (p PortalConfig) BranchURL(branch string) (string, error) {
	url, ok := p.Branches[strings.ToLower(branch)]
	if !ok {
		return "", fmt.Errorf("unknown branch %q", branch)
	}
	return url, nil
}

// TimeoutConfig defines the named wait tiers used by all page interactions.
type TimeoutConfig struct {
	ShortSeconds    int `mapstructure:"short_seconds"`
	MediumSeconds   int `mapstructure:"medium_seconds"`
	LongSeconds     int `mapstructure:"long_seconds"`
	DownloadSeconds int `mapstructure:"download_seconds"`
	DownloadPollMS  int `mapstructure:"download_poll_ms"`
}

// Short is the short wait tier.
func (t TimeoutConfig) Short() time.Duration {
	return time.Duration(t.ShortSeconds) * time.Second
}

// Medium is the medium wait tier.
func (t TimeoutConfig) Medium() time.Duration {
	return time.Duration(t.MediumSeconds) * time.Second
}

// Long is the long wait tier.
func (t TimeoutConfig) Long() time.Duration {
	return time.Duration(t.LongSeconds) * time.Second
}

// Download is the operation-specific budget for large report downloads.
func (t TimeoutConfig) Download() time.Duration {
	return time.Duration(t.DownloadSeconds) * time.Second
}

// DownloadPoll is the interval between download-completion checks.
func (t TimeoutConfig) DownloadPoll() time.Duration {
	return time.Duration(t.DownloadPollMS) * time.Millisecond
}

// LoginConfig bounds the login retry loop.
type LoginConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BackoffMS   int `mapstructure:"backoff_ms"`
}

// Backoff is the pause between login attempts.
func (l LoginConfig) Backoff() time.Duration {
	return time.Duration(l.BackoffMS) * time.Millisecond
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ECOPHIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("intercommerce.base_url", "https://www.intercommerce.com.ph")
	v.SetDefault("vbs.base_url", "https://ictsi.vbs.1-stop.biz")
	v.SetDefault("timeouts.short_seconds", 5)
	v.SetDefault("timeouts.medium_seconds", 30)
	v.SetDefault("timeouts.long_seconds", 60)
	v.SetDefault("timeouts.download_seconds", 120)
	v.SetDefault("timeouts.download_poll_ms", 1000)
	v.SetDefault("login.max_attempts", 3)
	v.SetDefault("login.backoff_ms", 500)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.Timeouts.ShortSeconds <= 0 || c.Timeouts.MediumSeconds <= 0 ||
		c.Timeouts.LongSeconds <= 0 || c.Timeouts.DownloadSeconds <= 0 {
		return fmt.Errorf("all timeout tiers must be > 0")
	}
	if c.Login.MaxAttempts <= 0 {
		return fmt.Errorf("login.max_attempts must be > 0")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}
