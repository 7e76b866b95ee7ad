// Package config loads client and server settings through viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. FINANCE_API_URL.
const EnvPrefix = "FINANCE"

// Logging holds logger settings.
type Logging struct {
	Level  string
	Format string
}

// Server holds backend settings.
type Server struct {
	Port             string
	Project          string
	Dataset          string
	Bucket           string
	StatementsPrefix string
	LedgerTable      string
	Location         string
	Model            string
}

// Config is the full configuration.
type Config struct {
	APIURL      string
	Schema      string
	PageLimit   int
	StaleTime   time.Duration
	HTTPTimeout time.Duration
	Logging     Logging
	Server      Server
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("page_limit", 100)
	v.SetDefault("stale_time", 5*time.Minute)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logger.FormatConsole)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.dataset", "finance")
	v.SetDefault("server.statements_prefix", "statements/")
	v.SetDefault("server.ledger_table", "txns")
	v.SetDefault("server.location", "EU")
	v.SetDefault("server.model", "gemini-2.5-flash")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIURL:      strings.TrimSpace(v.GetString("api_url")),
		Schema:      strings.TrimSpace(v.GetString("schema")),
		PageLimit:   v.GetInt("page_limit"),
		StaleTime:   v.GetDuration("stale_time"),
		HTTPTimeout: v.GetDuration("http_timeout"),
		Logging: Logging{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Server: Server{
			Port:             v.GetString("server.port"),
			Project:          v.GetString("server.project"),
			Dataset:          v.GetString("server.dataset"),
			Bucket:           v.GetString("server.bucket"),
			StatementsPrefix: v.GetString("server.statements_prefix"),
			LedgerTable:      v.GetString("server.ledger_table"),
			Location:         v.GetString("server.location"),
			Model:            v.GetString("server.model"),
		},
	}

	if cfg.PageLimit <= 0 {
		return nil, fmt.Errorf("Load: page_limit must be positive, got %d", cfg.PageLimit)
	}
	if cfg.StaleTime < 0 {
		return nil, fmt.Errorf("Load: stale_time must not be negative")
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("Load: http_timeout must be positive")
	}
	if _, err := logger.ParseLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	switch cfg.Logging.Format {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return nil, fmt.Errorf("Load: invalid log format %q", cfg.Logging.Format)
	}
	return cfg, nil
}

// RequireAPI checks the settings every client command needs.
func (c *Config) RequireAPI() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is not set (use --api-url, %s_API_URL or the config file)", EnvPrefix)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url %q is not an absolute URL", c.APIURL)
	}
	return nil
}

// RequireServer checks the settings the backend needs.
func (c *Config) RequireServer() error {
	if c.Server.Project == "" {
		return fmt.Errorf("server.project is not set (%s_SERVER_PROJECT)", EnvPrefix)
	}
	if c.Server.Bucket == "" {
		return fmt.Errorf("server.bucket is not set (%s_SERVER_BUCKET)", EnvPrefix)
	}
	return nil
}
