package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Web      WebConfig      `yaml:"web"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Mail     MailConfig     `yaml:"mail"`
	Billing  BillingConfig  `yaml:"billing"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebConfig represents web UI configuration
type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// MailConfig represents mail API configuration
type MailConfig struct {
	// APIBase is the base URL of the mail provider's REST API
	APIBase string `yaml:"api_base"`
	// FromName is the display name used on outgoing bill mail
	FromName string `yaml:"from_name"`
	// SearchWindowDays limits how far back the inbox is scanned for payments
	SearchWindowDays int `yaml:"search_window_days"`
	// TokenKey is the base64 key used to seal stored mail OAuth tokens
	TokenKey string `yaml:"token_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

const defaultMatchTolerance = 0.01

// BillingConfig represents billing configuration
type BillingConfig struct {
	Currency string `yaml:"currency"`
	// MatchTolerance is the maximum difference between a parsed payment and
	// the expected amount for the two to be considered a match. Zero means
	// exact amounts only; unset falls back to $0.01.
	MatchTolerance *float64 `yaml:"match_tolerance"`
}

// Tolerance returns the match tolerance as a decimal amount
func (c *BillingConfig) Tolerance() decimal.Decimal {
	if c.MatchTolerance == nil {
		return decimal.NewFromFloat(defaultMatchTolerance)
	}
	return decimal.NewFromFloat(*c.MatchTolerance)
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if mailBase := os.Getenv("MAIL_API_BASE"); mailBase != "" {
		c.Mail.APIBase = mailBase
	}

	if tokenKey := os.Getenv("MAIL_TOKEN_KEY"); tokenKey != "" {
		c.Mail.TokenKey = tokenKey
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}
}

// setDefaults fills unset fields with defaults
func (c *Config) setDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Mail.SearchWindowDays == 0 {
		c.Mail.SearchWindowDays = 14
	}
	if c.Mail.Timeout == 0 {
		c.Mail.Timeout = 30 * time.Second
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = "USD"
	}
	if c.Billing.MatchTolerance == nil {
		tolerance := defaultMatchTolerance
		c.Billing.MatchTolerance = &tolerance
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks required fields
func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	return nil
}
