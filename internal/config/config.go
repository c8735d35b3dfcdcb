// SPDX-License-Identifier: MIT

// Package config loads daemon configuration with precedence ENV > file > defaults.
package config

import (
	"time"
)

// Defaults for the engine and its collaborators.
const (
	DefaultMaxSessions     = 16
	DefaultConnectTimeout  = 10 * time.Second
	DefaultDegradedTimeout = 15 * time.Second
	DefaultBackoffBase     = 1 * time.Second
	DefaultBackoffCap      = 30 * time.Second
	DefaultMaxAuthFailures = 3
	DefaultMinCellWidth    = 200
	DefaultListenAddr      = ":8089"
)

// Config is the fully merged daemon configuration.
type Config struct {
	// Engine limits and timing.
	MaxSessions     int           `yaml:"max_sessions"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	DegradedTimeout time.Duration `yaml:"degraded_timeout"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffCap      time.Duration `yaml:"backoff_cap"`
	MaxAuthFailures int           `yaml:"max_auth_failures"`

	// Layout.
	MinCellWidth int `yaml:"min_cell_width"`

	// Collaborators.
	CamerasFile string `yaml:"cameras_file"` // YAML camera registry, watched for changes
	SecretsDir  string `yaml:"secrets_dir"`  // one secret file per camera ID
	PlayerCmd   string `yaml:"player_cmd"`   // external player command template

	// HTTP API.
	ListenAddr string `yaml:"listen_addr"`

	// Logging.
	LogLevel   string `yaml:"log_level"`
	LogService string `yaml:"log_service"`
}

// withDefaults returns a Config populated with default values.
func withDefaults() Config {
	return Config{
		MaxSessions:     DefaultMaxSessions,
		ConnectTimeout:  DefaultConnectTimeout,
		DegradedTimeout: DefaultDegradedTimeout,
		BackoffBase:     DefaultBackoffBase,
		BackoffCap:      DefaultBackoffCap,
		MaxAuthFailures: DefaultMaxAuthFailures,
		MinCellWidth:    DefaultMinCellWidth,
		ListenAddr:      DefaultListenAddr,
		LogLevel:        "info",
		LogService:      "gridcam",
	}
}
