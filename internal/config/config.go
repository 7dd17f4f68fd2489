// Package config resolves runtime configuration from the environment,
// optionally overlaid by a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// #region config

// Config is everything the coach binary needs at startup.
type Config struct {
	DBPath     string `yaml:"db_path"`
	WindowDays int    `yaml:"window_days"`

	Refine RefineConfig `yaml:"refine"`
}

// RefineConfig configures the AI plan-refinement collaborator. With no
// API key the static refiner is used instead.
type RefineConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout converts the configured seconds, zero meaning "use default".
func (r RefineConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:     "coach.db",
		WindowDays: 5,
	}
}

// #endregion config

// #region load

// Load builds the config from defaults, then the environment, then an
// optional YAML file. The file wins: explicit configuration beats
// ambient environment.
func Load(path string) (Config, error) {
	cfg := Default()

	cfg.DBPath = envOr("COACH_DB", cfg.DBPath)
	cfg.Refine.Endpoint = envOr("COACH_REFINE_ENDPOINT", cfg.Refine.Endpoint)
	cfg.Refine.APIKey = envOr("COACH_REFINE_API_KEY", cfg.Refine.APIKey)
	cfg.Refine.Model = envOr("COACH_REFINE_MODEL", cfg.Refine.Model)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.WindowDays <= 0 {
		cfg.WindowDays = Default().WindowDays
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load
