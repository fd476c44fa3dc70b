package shared

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`

	DBDialect string `env:"DB_DIALECT" envDefault:"mysql"`
	DBDSN     string `env:"DB_DSN" envDefault:"root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4&loc=UTC"`

	// An empty RedisAddr runs without a read cache.
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass       string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CacheTTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"900"`

	RateLimitRPS int `env:"RATE_LIMIT_RPS" envDefault:"100"`
	SeedWorkers  int `env:"SEED_WORKERS" envDefault:"8"`

	CacheTTL time.Duration `env:"-"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.CacheTTLSeconds < 0 {
		return Config{}, fmt.Errorf("CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}
	if c.SeedWorkers <= 0 {
		c.SeedWorkers = 1
	}
	c.CacheTTL = time.Duration(c.CacheTTLSeconds) * time.Second
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty, read cache disabled")
	}
	return c, nil
}
