// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig configures the HTTP and WebSocket surface.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// StorageConfig configures the persisted state slot.
type StorageConfig struct {
	StatePath string `mapstructure:"state_path"`
	// Watch enables the filesystem fallback path that picks up slot writes
	// made by other surfaces.
	Watch bool `mapstructure:"watch"`
}

// RelayConfig configures the optional relay connection. An empty URL
// disables the relay path entirely.
type RelayConfig struct {
	URL string `mapstructure:"url"`
}

// CatalogConfig configures the card catalog source. When DatabaseURL is set
// the catalog loads from postgres, otherwise from the JSON file at Path.
type CatalogConfig struct {
	Path        string `mapstructure:"path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path. A missing file yields defaults;
// OVERLAY_-prefixed environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server.address", ":8712")
	v.SetDefault("storage.state_path", "data/state.json")
	v.SetDefault("storage.watch", true)
	v.SetDefault("relay.url", "")
	v.SetDefault("catalog.path", "data/cards.json")
	v.SetDefault("catalog.database_url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix("OVERLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A plainly absent file means "run on defaults"; anything else is a
		// real configuration problem.
		if !errors.Is(err, fs.ErrNotExist) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
