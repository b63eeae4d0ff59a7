package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded from the environment (with an
// optional .env file for local runs).
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH" envDefault:"data/app.db"`
	SeedPath    string `env:"SEED_PATH" envDefault:"data/seeds/fleet.json"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AuditURL string `env:"AUDIT_URL"`

	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15s"`
	RateLimitMax    int64         `env:"RATE_LIMIT_MAX" envDefault:"5"`

	// LocalRateRPS > 0 enables the in-process token-bucket layer.
	LocalRateRPS   float64 `env:"LOCAL_RATE_RPS" envDefault:"0"`
	LocalRateBurst int     `env:"LOCAL_RATE_BURST" envDefault:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("load config: parse environment: %w", err)
	}

	return &cfg, nil
}

// DSN is the database connection string: DATABASE_URL when set, otherwise
// the local sqlite path.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Get reads an environment variable with a fallback.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
