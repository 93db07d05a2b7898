// FleetLive - Client-Side Live Tracking for Transport Operations
// Copyright 2026 Adam A. (adam-announ)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adam-announ/fleetlive

// Package config loads FleetLive client configuration using Koanf v2 with
// layered sources: struct defaults, an optional YAML file, then FLEETLIVE_*
// environment variables. Precedence: ENV > File > Defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"fleetlive.yaml",
	"fleetlive.yml",
	"/etc/fleetlive/fleetlive.yaml",
	"/etc/fleetlive/fleetlive.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "FLEETLIVE_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping to keys.
const envPrefix = "FLEETLIVE_"

// Config is the root client configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Backoff  BackoffConfig  `koanf:"backoff"`
	Throttle ThrottleConfig `koanf:"throttle"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig locates the transport backend.
type ServerConfig struct {
	// URL is the HTTP(S) base URL of the backend; ws(s):// URLs are derived
	// from it for realtime topics.
	URL string `koanf:"url"`

	// Token authenticates both REST calls and realtime connections. Carried
	// as a query parameter on every topic URL when non-empty.
	Token string `koanf:"token"`

	// RequestTimeout bounds the initial mission REST load.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// BackoffConfig tunes channel reconnection per topic. The notifications feed
// historically used a tighter policy than tracking; both are configurable.
type BackoffConfig struct {
	BaseInterval              time.Duration `koanf:"base_interval"`
	MaxAttempts               int           `koanf:"max_attempts"`
	NotificationsBaseInterval time.Duration `koanf:"notifications_base_interval"`
	NotificationsMaxAttempts  int           `koanf:"notifications_max_attempts"`
}

// ThrottleConfig tunes the position stream reducer.
type ThrottleConfig struct {
	// UploadInterval is the carrier-side minimum gap between uploads.
	UploadInterval time.Duration `koanf:"upload_interval"`

	// DisplayInterval is the observer-side minimum gap between redraws.
	DisplayInterval time.Duration `koanf:"display_interval"`
}

// LogConfig mirrors logging.Config for file/env control.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all default values. Backoff defaults
// match the tracking adapter (5s base, 10 attempts); notifications keep their
// historical tighter policy (1s base, 5 attempts).
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://localhost:8000",
			Token:          "",
			RequestTimeout: 10 * time.Second,
		},
		Backoff: BackoffConfig{
			BaseInterval:              5 * time.Second,
			MaxAttempts:               10,
			NotificationsBaseInterval: time.Second,
			NotificationsMaxAttempts:  5,
		},
		Throttle: ThrottleConfig{
			UploadInterval:  10 * time.Second,
			DisplayInterval: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// FLEETLIVE_* environment variables, then validates it.
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// loadFrom is the file-path-injectable core of Load, used by tests.
func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// FLEETLIVE_SERVER_URL -> server.url, FLEETLIVE_BACKOFF_MAX_ATTEMPTS ->
	// backoff.max_attempts, and so on.
	envProvider := env.Provider(envPrefix, ".", transformEnvVar)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// transformEnvVar maps FLEETLIVE_SECTION_KEY_NAME to section.key_name.
// The first underscore separates the section; the rest stays joined.
func transformEnvVar(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return s
	}
	return parts[0] + "." + parts[1]
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.url: missing host")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %v", c.Server.RequestTimeout)
	}
	if c.Backoff.BaseInterval <= 0 {
		return fmt.Errorf("backoff.base_interval must be positive, got %v", c.Backoff.BaseInterval)
	}
	if c.Backoff.MaxAttempts < 0 {
		return fmt.Errorf("backoff.max_attempts must be non-negative, got %d", c.Backoff.MaxAttempts)
	}
	if c.Backoff.NotificationsBaseInterval <= 0 {
		return fmt.Errorf("backoff.notifications_base_interval must be positive, got %v", c.Backoff.NotificationsBaseInterval)
	}
	if c.Backoff.NotificationsMaxAttempts < 0 {
		return fmt.Errorf("backoff.notifications_max_attempts must be non-negative, got %d", c.Backoff.NotificationsMaxAttempts)
	}
	if c.Throttle.UploadInterval <= 0 {
		return fmt.Errorf("throttle.upload_interval must be positive, got %v", c.Throttle.UploadInterval)
	}
	if c.Throttle.DisplayInterval <= 0 {
		return fmt.Errorf("throttle.display_interval must be positive, got %v", c.Throttle.DisplayInterval)
	}
	return nil
}
