// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

// Package config loads process-wide configuration for the Haven account
// service. Precedence, lowest to highest: built-in defaults, YAML config
// file, command-line flags, environment variables for the two secrets
// that should never appear on a command line or in a checked-in file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/havenwell/haven/internal/xdg"
)

// Environment overrides.
const (
	// EnvDatabaseURL overrides database_url.
	EnvDatabaseURL = "DATABASE_URL"

	// EnvTokenKey overrides token.signing_key.
	EnvTokenKey = "HAVEN_TOKEN_KEY"
)

// Config is the process-wide configuration, loaded once at startup and
// read-only afterwards.
type Config struct {
	ListenAddr     string        `koanf:"listen_addr"`
	MetricsAddr    string        `koanf:"metrics_addr"` // empty disables the observability server
	DatabaseURL    string        `koanf:"database_url"`
	LogFormat      string        `koanf:"log_format"` // json or text
	RequestTimeout time.Duration `koanf:"request_timeout"`

	Token    TokenConfig    `koanf:"token"`
	Password PasswordConfig `koanf:"password"`
}

// TokenConfig configures the session token issuer.
type TokenConfig struct {
	// SigningKey is the shared HS256 key, raw or "base64:"-prefixed
	// unpadded url-safe base64. Required; there is no default on
	// purpose. Generate one with `havend keygen`.
	SigningKey string `koanf:"signing_key"`

	// TTL is the session token validity window.
	TTL time.Duration `koanf:"ttl"`
}

// PasswordConfig holds the password acceptance policy.
type PasswordConfig struct {
	MinLength int `koanf:"min_length"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		ListenAddr:     ":3000",
		MetricsAddr:    "127.0.0.1:9100",
		LogFormat:      "json",
		RequestTimeout: 10 * time.Second,
		Token: TokenConfig{
			TTL: time.Hour,
		},
		Password: PasswordConfig{
			MinLength: 8,
		},
	}
}

// flagKeys maps flag names to config keys where a plain dash-to-underscore
// rewrite isn't enough.
var flagKeys = map[string]string{
	"token-ttl":           "token.ttl",
	"password-min-length": "password.min_length",
}

// Load reads configuration from the given file path (or the XDG default
// when path is empty), overlays the given flags, and applies environment
// overrides. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if path == "" {
		path = xdg.ConfigFile()
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing default file is fine; a missing explicit one is not.
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv(EnvTokenKey); v != "" {
		cfg.Token.SigningKey = v
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required (or set %s)", EnvDatabaseURL)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.RequestTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("request_timeout must be positive")
	}
	if c.Token.SigningKey == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token.signing_key is required (or set %s); generate one with 'havend keygen'", EnvTokenKey)
	}
	if c.Token.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token.ttl must be positive")
	}
	if c.Password.MinLength < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("password.min_length must be at least 1")
	}
	return nil
}
