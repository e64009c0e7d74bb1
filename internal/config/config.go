// Package config loads runtime configuration from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file in the working directory. Command-line flags override them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrNotLoopback is returned when the HTTP address would listen beyond the
// local host.
var ErrNotLoopback = errors.New("http address must be a loopback address")

// Config holds all runtime settings.
type Config struct {
	// DB is the path of the SQLite database.
	DB string `env:"RALLY_DB" envDefault:"rally.db"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"RALLY_LOG_LEVEL" envDefault:"info"`

	// HTTPAddr is the listen address of the local API.
	HTTPAddr string `env:"RALLY_HTTP_ADDR" envDefault:"127.0.0.1:7311"`

	// ModesFile is an optional CUE catalogue imported at startup.
	ModesFile string `env:"RALLY_MODES_FILE"`
}

// Load reads .env files (default ".env"; missing files are ignored) into the
// environment, then parses and validates Config.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DB) == "" {
		return errors.New("config: database path is empty")
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := CheckLoopback(c.HTTPAddr); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// CheckLoopback rejects listen addresses that are not bound to the local host.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("http address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}
	return nil
}
