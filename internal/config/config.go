package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env  string `env:"APP_ENV, default=development"`
	Port string `env:"PORT, default=8083"`

	AuthAPIURL     string        `env:"AUTH_API_URL, default=http://localhost:8080"`
	AuthAPITimeout time.Duration `env:"AUTH_API_TIMEOUT, default=10s"`

	SessionDBPath string `env:"SESSION_DB_PATH, default=linkup.db"`

	DeliveredAfter time.Duration `env:"RECEIPT_DELIVERED_AFTER, default=1s"`
	ReadAfter      time.Duration `env:"RECEIPT_READ_AFTER, default=2s"`

	SendRPS   float64 `env:"SEND_RATE_RPS, default=5"`
	SendBurst int     `env:"SEND_RATE_BURST, default=10"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE, default=linkup.events"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME, default=linkup"`

	DebugRoutes bool `env:"DEBUG_ROUTES, default=false"`
}

// IsDev reports whether the service runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Load reads an optional .env file, then the process environment.
func Load(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on process environment")
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	if cfg.ReadAfter < cfg.DeliveredAfter {
		return Config{}, fmt.Errorf("RECEIPT_READ_AFTER (%s) must not be shorter than RECEIPT_DELIVERED_AFTER (%s)", cfg.ReadAfter, cfg.DeliveredAfter)
	}
	return cfg, nil
}
