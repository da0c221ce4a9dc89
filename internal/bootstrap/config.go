// Package bootstrap wires configuration, infrastructure, and services into a
// runnable process.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sentinel-aoi/aoi-api/config"
)

// InitLogger installs the process-wide JSON logger and returns it.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads configuration from the environment, with an optional .env
// file for development, and applies the Sanitize guardrails.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env file is the normal production case.
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// EnabledServiceNames resolves SERVICES into a sorted list of service names,
// failing when the selection is empty or names an unknown service.
func EnabledServiceNames(cfg *config.AppConfig) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return nil, errors.New("no services enabled")
	}

	names := make([]string, 0, len(services))
	for svc := range services {
		names = append(names, string(svc))
	}
	sort.Strings(names)
	return names, nil
}
