// SPDX-License-Identifier: MIT

package config

import "fmt"

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// Validate rejects configurations that would make the engine misbehave.
// Capacity 0 is legal: it means no camera is ever admitted.
func (c *Config) Validate() error {
	if c.MaxSessions < 0 {
		return &ValidationError{Field: "max_sessions", Reason: "must be >= 0"}
	}
	if c.ConnectTimeout <= 0 {
		return &ValidationError{Field: "connect_timeout", Reason: "must be > 0"}
	}
	if c.DegradedTimeout <= 0 {
		return &ValidationError{Field: "degraded_timeout", Reason: "must be > 0"}
	}
	if c.BackoffBase <= 0 {
		return &ValidationError{Field: "backoff_base", Reason: "must be > 0"}
	}
	if c.BackoffCap < c.BackoffBase {
		return &ValidationError{Field: "backoff_cap", Reason: "must be >= backoff_base"}
	}
	if c.MaxAuthFailures < 1 {
		return &ValidationError{Field: "max_auth_failures", Reason: "must be >= 1"}
	}
	if c.MinCellWidth < 1 {
		return &ValidationError{Field: "min_cell_width", Reason: "must be >= 1"}
	}
	if c.ListenAddr == "" {
		return &ValidationError{Field: "listen_addr", Reason: "must not be empty"}
	}
	return nil
}
