// Package config loads bindparty settings from YAML and the environment.
//
// Sources are applied in order: built-in defaults, the optional YAML file,
// then BINDPARTY_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BINDPARTY_"

// Config holds every tunable of the engine and its demo command.
type Config struct {
	// SyncInterval is the period of the binding registry's synchronization pass.
	SyncInterval time.Duration `yaml:"sync_interval" validate:"min=1ms"`
	Log          Log           `yaml:"log"`
	Demo         Demo          `yaml:"demo"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Demo configures the demo command.
type Demo struct {
	Items int           `yaml:"items" validate:"min=1,max=1000"`
	Delay time.Duration `yaml:"delay" validate:"min=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SyncInterval: 100 * time.Millisecond,
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Demo: Demo{
			Items: 3,
			Delay: 100 * time.Millisecond,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration against its validation tags.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	duration("SYNC_INTERVAL", &cfg.SyncInterval)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	integer("DEMO_ITEMS", &cfg.Demo.Items)
	duration("DEMO_DELAY", &cfg.Demo.Delay)

	return errors.Join(errs...)
}
