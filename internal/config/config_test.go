// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxSessions, cfg.MaxSessions)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultDegradedTimeout, cfg.DegradedTimeout)
	assert.Equal(t, DefaultBackoffBase, cfg.BackoffBase)
	assert.Equal(t, DefaultBackoffCap, cfg.BackoffCap)
	assert.Equal(t, DefaultMinCellWidth, cfg.MinCellWidth)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"max_sessions: 4\nconnect_timeout: 5s\nlisten_addr: \":9000\"\n",
	), 0o600))

	t.Setenv("GRIDCAM_MAX_SESSIONS", "2")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	// ENV wins over file, file wins over defaults.
	assert.Equal(t, 2, cfg.MaxSessions)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, DefaultDegradedTimeout, cfg.DegradedTimeout)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_sesssions: 4\n"), 0o600))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:   "zero capacity is legal",
			mutate: func(c *Config) { c.MaxSessions = 0 },
		},
		{
			name:    "negative capacity",
			mutate:  func(c *Config) { c.MaxSessions = -1 },
			wantErr: "max_sessions",
		},
		{
			name:    "zero connect timeout",
			mutate:  func(c *Config) { c.ConnectTimeout = 0 },
			wantErr: "connect_timeout",
		},
		{
			name:    "cap below base",
			mutate:  func(c *Config) { c.BackoffCap = c.BackoffBase / 2 },
			wantErr: "backoff_cap",
		},
		{
			name:    "zero min cell width",
			mutate:  func(c *Config) { c.MinCellWidth = 0 },
			wantErr: "min_cell_width",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := withDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseInt_Invalid(t *testing.T) {
	t.Setenv("GRIDCAM_TEST_INT", "not-a-number")
	assert.Equal(t, 7, ParseInt("GRIDCAM_TEST_INT", 7))
}

func TestParseDuration_Invalid(t *testing.T) {
	t.Setenv("GRIDCAM_TEST_DUR", "soon")
	assert.Equal(t, time.Second, ParseDuration("GRIDCAM_TEST_DUR", time.Second))
}
