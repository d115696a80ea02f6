// Package config loads runtime settings from the environment. Defaults
// match the protocol contract; ORCH_-prefixed variables override them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the orchestrator's environment variables.
const envPrefix = "ORCH_"

// Config carries the tunables shared by the tool server and protocol peers.
type Config struct {
	CallTimeout      time.Duration `koanf:"call_timeout"`
	ValidatorTimeout time.Duration `koanf:"validator_timeout"`
	MaxFileSize      int64         `koanf:"max_file_size"`
	LogLevel         string        `koanf:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CallTimeout:      5 * time.Second,
		ValidatorTimeout: 15 * time.Second,
		MaxFileSize:      100 * 1024 * 1024,
		LogLevel:         "info",
	}
}

// Load overlays ORCH_* environment variables onto the defaults.
// ORCH_CALL_TIMEOUT=10s, ORCH_LOG_LEVEL=debug, and so on.
func Load() (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	provider := env.Provider(envPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, envPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		return cfg, fmt.Errorf("config: load environment: %w", err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.CallTimeout <= 0 {
		return cfg, fmt.Errorf("config: call_timeout must be positive")
	}
	if cfg.ValidatorTimeout <= 0 {
		return cfg, fmt.Errorf("config: validator_timeout must be positive")
	}
	if cfg.MaxFileSize <= 0 {
		return cfg, fmt.Errorf("config: max_file_size must be positive")
	}
	return cfg, nil
}
