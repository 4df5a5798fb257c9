// Package config loads ClickTrail settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Attribution Attribution
	Server      Server
	Forms       Forms
	Database    Database
	Pages       Pages
	Email       Email
	Log         Log
}

// Attribution mirrors the options handed to the page tag.
type Attribution struct {
	CookieName     string        `env:"CT_COOKIE_NAME" envDefault:"ct_attribution"`
	CookieDays     int           `env:"CT_COOKIE_DAYS" envDefault:"90"`
	RequireConsent bool          `env:"CT_REQUIRE_CONSENT" envDefault:"true"`
	AjaxURL        string        `env:"CT_AJAX_URL"`
	NonceSecret    string        `env:"CT_NONCE_SECRET"`
	NonceTTL       time.Duration `env:"CT_NONCE_TTL" envDefault:"12h"`
}

// Server Configuration
type Server struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	AllowedOrigins []string      `env:"CT_ALLOWED_ORIGINS" envSeparator:","`

	// AdminToken guards the lead audit and log endpoints. Empty disables them.
	AdminToken string `env:"CT_ADMIN_TOKEN"`
}

// Forms lists the form platforms installed on the site.
type Forms struct {
	Platforms []string `env:"CT_FORM_PLATFORMS" envSeparator:"," envDefault:"contact-form-7,fluent-forms,gravity-forms,ninja-forms,wpforms"`
}

// Database Pool
type Database struct {
	Driver             string        `env:"CT_DB_DRIVER" envDefault:"sqlite3"`
	DSN                string        `env:"CT_DB_DSN" envDefault:"clicktrail.db"`
	AuthToken          string        `env:"CT_DB_AUTH_TOKEN"`
	MaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" envDefault:"3"`
	ConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	SlowQueryThreshold time.Duration `env:"CT_SLOW_QUERY_THRESHOLD" envDefault:"500ms"`
}

// Pages controls how long pages waiting for consent are kept.
type Pages struct {
	TTL             time.Duration `env:"CT_PAGE_TTL" envDefault:"30m"`
	CleanupInterval time.Duration `env:"CT_CLEANUP_INTERVAL" envDefault:"5m"`
}

// Email configures lead notifications. Both APIKey and NotifyTo are needed.
type Email struct {
	APIKey   string `env:"RESEND_API_KEY"`
	NotifyTo string `env:"CT_LEAD_NOTIFY_TO"`
	From     string `env:"CT_EMAIL_FROM" envDefault:"noreply@clicktrail.local"`
	FromName string `env:"CT_EMAIL_FROM_NAME" envDefault:"ClickTrail"`
}

// Enabled reports whether lead notifications should be sent.
func (e Email) Enabled() bool {
	return e.APIKey != "" && e.NotifyTo != ""
}

// Log configures the channeled logger.
type Log struct {
	JSON  bool   `env:"CT_LOG_JSON" envDefault:"true"`
	Level string `env:"CT_LOG_LEVEL" envDefault:"info"`
	Dir   string `env:"CT_LOG_DIR"`

	// Stream feeds every log line to the admin log stream.
	Stream bool `env:"CT_LOG_STREAM" envDefault:"true"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already set win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found -- config defaults will be used")
	}
	return Parse()
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Forms.Platforms = trimAll(cfg.Forms.Platforms)
	cfg.Server.AllowedOrigins = trimAll(cfg.Server.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Attribution.CookieName) == "" {
		errs = append(errs, errors.New("CT_COOKIE_NAME must not be empty"))
	}
	if c.Attribution.CookieDays <= 0 {
		errs = append(errs, fmt.Errorf("CT_COOKIE_DAYS must be positive, got %d", c.Attribution.CookieDays))
	}
	switch c.Database.Driver {
	case "sqlite3", "libsql":
	default:
		errs = append(errs, fmt.Errorf("CT_DB_DRIVER must be sqlite3 or libsql, got %q", c.Database.Driver))
	}
	if c.Pages.TTL <= 0 {
		errs = append(errs, errors.New("CT_PAGE_TTL must be positive"))
	}
	if c.Pages.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CT_CLEANUP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
