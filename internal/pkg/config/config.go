package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings, parsed from MARKET_* environment
// variables.
type Config struct {
	Env      string `env:"MARKET_ENV" envDefault:"dev"`
	HTTPAddr string `env:"MARKET_HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"MARKET_DB_PATH" envDefault:"marketplace.db"`
	BaseURL  string `env:"MARKET_BASE_URL" envDefault:"http://localhost:8080"`

	// ResetTokenTTL is the fixed horizon a password-reset token stays
	// redeemable after issuance.
	ResetTokenTTL time.Duration `env:"MARKET_RESET_TOKEN_TTL" envDefault:"10m"`

	// MailTimeout bounds the fire-and-forget notification call so a slow
	// sink can never stall a request.
	MailTimeout time.Duration `env:"MARKET_MAIL_TIMEOUT" envDefault:"300ms"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
