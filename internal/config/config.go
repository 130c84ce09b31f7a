// Package config provides configuration management for the quarry CLI.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings shared by every quarry command.
type Config struct {
	StoreURL   string
	Collection string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		StoreURL:   "sqlite://quarry.db",
		Collection: "records",
	}
}

// Load reads configuration with viper.
// CLI flags > environment > config file > defaults precedence.
// Environment variables use the QUARRY_ prefix (QUARRY_STORE_URL).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store.url", "sqlite://quarry.db")
	v.SetDefault("store.collection", "records")

	v.SetEnvPrefix("QUARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		StoreURL:   v.GetString("store.url"),
		Collection: v.GetString("store.collection"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store URL: %w", err)
	}
	switch u.Scheme {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store scheme: %s (expected memory, sqlite or postgres)", u.Scheme)
	}
	if cfg.Collection == "" {
		return fmt.Errorf("collection must not be empty")
	}
	return nil
}
