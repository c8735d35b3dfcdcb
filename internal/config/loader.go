// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by
// unknown keys. Use errors.Is instead of string matching.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load merges defaults, the optional YAML file and environment overrides,
// then validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := withDefaults()

	if l.configPath != "" {
		if err := mergeFile(&cfg, l.configPath); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays values from a YAML file. Unknown keys are rejected so
// typos fail fast instead of silently using defaults.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w: %w", path, ErrUnknownConfigField, err)
	}
	return nil
}

func mergeEnv(cfg *Config) {
	cfg.MaxSessions = ParseInt("GRIDCAM_MAX_SESSIONS", cfg.MaxSessions)
	cfg.ConnectTimeout = ParseDuration("GRIDCAM_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.DegradedTimeout = ParseDuration("GRIDCAM_DEGRADED_TIMEOUT", cfg.DegradedTimeout)
	cfg.BackoffBase = ParseDuration("GRIDCAM_BACKOFF_BASE", cfg.BackoffBase)
	cfg.BackoffCap = ParseDuration("GRIDCAM_BACKOFF_CAP", cfg.BackoffCap)
	cfg.MaxAuthFailures = ParseInt("GRIDCAM_MAX_AUTH_FAILURES", cfg.MaxAuthFailures)
	cfg.MinCellWidth = ParseInt("GRIDCAM_MIN_CELL_WIDTH", cfg.MinCellWidth)
	cfg.CamerasFile = ParseString("GRIDCAM_CAMERAS_FILE", cfg.CamerasFile)
	cfg.SecretsDir = ParseString("GRIDCAM_SECRETS_DIR", cfg.SecretsDir)
	cfg.PlayerCmd = ParseString("GRIDCAM_PLAYER_CMD", cfg.PlayerCmd)
	cfg.ListenAddr = ParseString("GRIDCAM_LISTEN", cfg.ListenAddr)
	cfg.LogLevel = ParseString("GRIDCAM_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("GRIDCAM_LOG_SERVICE", cfg.LogService)
}
