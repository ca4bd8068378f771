// Package config loads settings from flags, environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is stripped from environment variables; STUDYDECK_LOG_LEVEL sets log-level.
const EnvPrefix = "STUDYDECK_"

// Config holds all application settings.
type Config struct {
	DB        string `koanf:"db" validate:"required"`
	LogLevel  string `koanf:"log-level" validate:"required,oneof=debug info warn error"`
	LogFormat string `koanf:"log-format" validate:"required,oneof=text json"`
	ReposDir  string `koanf:"repos-dir" validate:"required"`
	Seed      uint64 `koanf:"seed"`
}

// RegisterFlags adds the configuration flags, with their defaults, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", DefaultConfigPath(), "path to a YAML config file")
	fs.String("db", DefaultDBPath(), "path to the SQLite database file (\":memory:\" for a throwaway deck)")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
	fs.String("repos-dir", DefaultReposDir(), "directory for cloned git sources")
	fs.Uint64("seed", 0, "shuffle seed for review sessions (0 picks a random one)")
}

// Load merges, in increasing precedence: flag defaults, the config file,
// STUDYDECK_* environment variables and flags set on the command line.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("config flag not registered: %w", err)
	}
	if err := loadFile(k, path, fs.Changed("config")); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFile reads path if it exists. A missing file only matters when it was asked for.
func loadFile(k *koanf.Koanf, path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to stat config %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default YAML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "studydeck", "config.yaml")
}

// DefaultDBPath returns the default SQLite database path.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), "studydeck", "studydeck.db")
}

// DefaultReposDir returns where git sources are cloned.
func DefaultReposDir() string {
	return filepath.Join(XDGDataHome(), "studydeck", "repos")
}
