package config

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path (if it exists), expands environment
// variables the same way envexpand.go always has, and merges the result
// over DefaultConfig. A missing path is not an error: the defaults (plus
// any env var substitutions baked into them at the call site) are used as-is,
// matching how the teacher's Initialize tolerated an absent config directory
// for local/dev runs.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return finish(cfg)
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Warn("config file not found, using defaults", "path", path)
		return finish(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := ExpandEnv(raw)

	var override Config
	if err := yaml.Unmarshal(expanded, &override); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config overrides: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
