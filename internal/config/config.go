package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/coldreach/coldreach-backend/internal/config/configs"
)

// Config aggregates all configuration sections for the application. Fields
// are populated from environment variables; nested structs are tagged with
// envPrefix so their fields parse with the given prefix. There is no global
// config instance: Load returns a value that is passed into constructors.
type Config struct {
	// Env names the deployment environment (prod, dev). Used for logging
	// context only.
	Env string `env:"ENV" envDefault:"prod"`

	// HTTP configures the API server. Variables prefixed with HTTP_.
	HTTP configs.HTTP `envPrefix:"HTTP_"`

	// Log configures the structured logger. Variables prefixed with LOG_.
	Log configs.Logger `envPrefix:"LOG_"`

	// Psql configures the PostgreSQL connection. Variables prefixed with
	// PSQL_.
	Psql configs.Postgres `envPrefix:"PSQL_"`

	// Queue configures the dispatch queue. Variables prefixed with AMQP_.
	Queue configs.AMQP `envPrefix:"AMQP_"`

	// Worker configures the send worker pool. Variables prefixed with
	// WORKER_.
	Worker configs.Worker `envPrefix:"WORKER_"`

	// Crypto configures mailbox token encryption. Variables prefixed with
	// CRYPTO_.
	Crypto configs.Crypto `envPrefix:"CRYPTO_"`
}

// Load reads a .env file when one is present, then parses the environment
// into a Config. Absence of a .env file is not an error; containerized
// deployments set the environment directly.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
