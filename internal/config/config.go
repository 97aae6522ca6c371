// Package config содержит логику чтения конфигурации расчётного сервиса.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации расчётного сервиса.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	GatewayAddress     string `env:"GATEWAY_ADDRESS"`
	AuthSecret         string `env:"AUTH_SECRET"`
	MinWithdrawalCents int64  `env:"MIN_WITHDRAWAL_CENTS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Значение из окружения имеет приоритет над флагом.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress
	envAuthSecret := cfg.AuthSecret
	envMinWithdrawal := cfg.MinWithdrawalCents

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "settlement gateway address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth cookies")
	flag.Int64Var(&cfg.MinWithdrawalCents, "m", 100, "minimum withdrawal amount in cents")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envMinWithdrawal != 0 {
		cfg.MinWithdrawalCents = envMinWithdrawal
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
