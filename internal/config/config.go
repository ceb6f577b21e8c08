// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string `env:"ROOMSYNC_PORT" envDefault:"8080"`
	DBPath    string `env:"ROOMSYNC_DB_PATH" envDefault:"roomsync.db"`
	JWTSecret string `env:"ROOMSYNC_JWT_SECRET,required"`
	LogLevel  string `env:"ROOMSYNC_LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
