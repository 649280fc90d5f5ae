// Package config loads the process configuration. Precedence, lowest to
// highest: built-in defaults, an optional YAML file (zapdesk.yaml), then
// ZAPDESK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"LOG_JSON"`

	// AllowedOrigin is the single browser origin permitted for CORS and
	// WebSocket upgrades. Empty allows localhost only.
	AllowedOrigin string `yaml:"allowed_origin" env:"ALLOWED_ORIGIN"`

	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`

	DBPath string `yaml:"db_path" env:"DB_PATH"`

	Session SessionConfig `yaml:"session" envPrefix:"SESSION_"`
	Cache   CacheConfig   `yaml:"cache" envPrefix:"CACHE_"`
}

// SessionConfig controls the session manager and the addressing scheme used
// to decide which contact numbers are in scope.
type SessionConfig struct {
	// CountryPrefix and NumberLength define the addressing scheme: a contact
	// is exposed only when its normalized number starts with CountryPrefix
	// and has exactly NumberLength digits.
	CountryPrefix string `yaml:"country_prefix" env:"COUNTRY_PREFIX"`
	NumberLength  int    `yaml:"number_length" env:"NUMBER_LENGTH"`

	// ReconnectOnDrop re-initializes the client after an unsolicited
	// disconnect. whatsappDisconnected is relayed first either way.
	ReconnectOnDrop bool `yaml:"reconnect_on_drop" env:"RECONNECT_ON_DROP"`

	// LookbackWindow bounds how far back delete/edit searches chat history.
	LookbackWindow int `yaml:"lookback_window" env:"LOOKBACK_WINDOW"`

	// EnrichWorkers caps concurrent profile photo fetches during listing.
	EnrichWorkers int `yaml:"enrich_workers" env:"ENRICH_WORKERS"`
}

// CacheConfig controls the profile image cache.
type CacheConfig struct {
	Dir           string        `yaml:"dir" env:"DIR"`
	PruneSchedule string        `yaml:"prune_schedule" env:"PRUNE_SCHEDULE"`
	MaxAge        time.Duration `yaml:"max_age" env:"MAX_AGE"`
}

func defaults() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          3000,
		LogLevel:      "info",
		AllowedOrigin: "http://localhost:5173",
		DBPath:        "zapdesk.db",
		Session: SessionConfig{
			CountryPrefix:   "55",
			NumberLength:    12,
			ReconnectOnDrop: true,
			LookbackWindow:  100,
			EnrichWorkers:   8,
		},
		Cache: CacheConfig{
			Dir:           filepath.Join("public", "images"),
			PruneSchedule: "0 3 * * *",
			MaxAge:        30 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is not an
// error, a malformed one is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults + env only
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ZAPDESK_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required (ZAPDESK_JWT_SECRET)")
	}
	if c.Session.NumberLength <= 0 {
		return fmt.Errorf("session.number_length must be positive")
	}
	if c.Session.LookbackWindow <= 0 {
		return fmt.Errorf("session.lookback_window must be positive")
	}
	if c.Session.EnrichWorkers <= 0 {
		return fmt.Errorf("session.enrich_workers must be positive")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
