/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One flat struct, parsed once at startup. A .env file is loaded first if
  present, so local development does not need exported variables; real
  deployments set the environment directly and the missing file is not an
  error.

USAGE:
  cfg, err := config.Load()
  if err != nil {
      log.Fatal().Err(err).Msg("config")
  }

SEE ALSO:
  - cmd/server/main.go: the only consumer
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	Address string `env:"ADDRESS" envDefault:":8080"`
	DBPath  string `env:"DB_PATH" envDefault:"./leave.db"`

	// JWTSecret signs and verifies the HS256 bearer tokens the API accepts.
	JWTSecret string `env:"JWT_SECRET,required"`

	// DefaultAllowanceDays seeds new members when their organization has no
	// default of its own.
	DefaultAllowanceDays int `env:"DEFAULT_ALLOWANCE_DAYS" envDefault:"25"`

	// BlockOnConflict turns the overlap warning into a hard rejection.
	BlockOnConflict bool `env:"BLOCK_ON_CONFLICT" envDefault:"false"`

	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
