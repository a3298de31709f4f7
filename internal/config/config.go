// Package config provides Viper-based configuration management for modfinder
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/modfinder/internal/fingerprint"
)

// DefaultOutputPath is where results are written unless configured otherwise.
const DefaultOutputPath = "~/Documents/Mod Manager/modfinder_results.json"

// Config represents the complete modfinder configuration
type Config struct {
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// OutputConfig contains result file and terminal output settings
type OutputConfig struct {
	Path   string `mapstructure:"path"`
	Colors bool   `mapstructure:"colors"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig controls every outgoing request
type HTTPConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Fingerprint  string        `mapstructure:"fingerprint"`
	PageTimeout  time.Duration `mapstructure:"page_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	Proxies      []string      `mapstructure:"proxies"`
	ProxyFile    string        `mapstructure:"proxy_file"`
}

// CrawlConfig contains crawl behaviour toggles
type CrawlConfig struct {
	RespectRobots bool `mapstructure:"respect_robots"`
}

// AuditConfig selects where fetch records are stored
type AuditConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// MetricsConfig controls the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads configuration from file and environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".modfinder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/modfinder")
	}

	// MODFINDER_HTTP_PAGE_TIMEOUT overrides http.page_timeout
	v.SetEnvPrefix("MODFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	path, err := ExpandHome(cfg.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}
	cfg.Output.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("output.path", DefaultOutputPath)
	v.SetDefault("output.colors", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("http.user_agent", "Mozilla/5.0")
	v.SetDefault("http.fingerprint", string(fingerprint.ProfileGo))
	v.SetDefault("http.page_timeout", 10*time.Second)
	v.SetDefault("http.probe_timeout", 5*time.Second)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.max_body_bytes", 5<<20)
	v.SetDefault("http.proxies", []string{})
	v.SetDefault("http.proxy_file", "")

	v.SetDefault("crawl.respect_robots", false)

	v.SetDefault("audit.backend", "none")
	v.SetDefault("audit.dsn", "")

	v.SetDefault("metrics.port", 0)
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Output.Path == "" {
		return errors.New("output path must not be empty")
	}

	if _, err := fingerprint.ParseProfile(c.HTTP.Fingerprint); err != nil {
		return err
	}

	if c.HTTP.PageTimeout <= 0 || c.HTTP.ProbeTimeout <= 0 {
		return errors.New("http timeouts must be positive")
	}

	validBackends := map[string]bool{"none": true, "jsonl": true, "csv": true, "sqlite": true, "postgres": true}
	if !validBackends[c.Audit.Backend] {
		return fmt.Errorf("invalid audit backend: %s (must be none, jsonl, csv, sqlite, or postgres)", c.Audit.Backend)
	}
	if c.Audit.Backend != "none" && c.Audit.DSN == "" {
		return fmt.Errorf("audit backend %s requires audit.dsn", c.Audit.Backend)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}
