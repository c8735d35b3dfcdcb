// SPDX-License-Identifier: MIT

// Package session implements the per-camera connection state machine. Each
// session is one goroutine that serializes its own events; cross-camera
// coordination happens only in the admission controller.
package session

import (
	"github.com/mhartig/gridcam/internal/player"
)

// State is a camera session's connection state.
type State string

const (
	// StateIdle is the rest state: not granted, player released.
	StateIdle State = "idle"
	// StateConnecting means a player handle was started and the session is
	// waiting for ready, error or the connect timeout.
	StateConnecting State = "connecting"
	// StateLive means the player reported ready and frames are flowing.
	StateLive State = "live"
	// StateDegraded means the player is stalled but not dead.
	StateDegraded State = "degraded"
	// StateFailed means the last attempt failed; Reason says why.
	StateFailed State = "failed"
)

// Reason classifies a failure. It is empty outside StateFailed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonMalformedTarget Reason = "malformed_target"
	ReasonAuthFailed      Reason = "auth_failed"
	ReasonTimeout         Reason = "timeout"
	ReasonTransport       Reason = "transport"
	ReasonUnsupported     Reason = "unsupported"
)

// reasonFromPlayerError maps the player's error taxonomy onto ours.
func reasonFromPlayerError(kind player.ErrorKind) Reason {
	switch kind {
	case player.ErrorAuth:
		return ReasonAuthFailed
	case player.ErrorTimeout:
		return ReasonTimeout
	case player.ErrorUnsupported:
		return ReasonUnsupported
	default:
		return ReasonTransport
	}
}

// autoRetryable reports whether a failure reason retries without user
// action. Auth failures are special-cased by the session: they retry until
// a consecutive-failure threshold, then require a manual retry.
func (r Reason) autoRetryable() bool {
	switch r {
	case ReasonMalformedTarget, ReasonUnsupported:
		return false
	default:
		return true
	}
}

// Status is the observable snapshot of one session, published on every
// transition. RedactedTarget never contains credentials.
type Status struct {
	CameraID       string `json:"camera_id"`
	Name           string `json:"name,omitempty"`
	State          State  `json:"state"`
	Reason         Reason `json:"reason,omitempty"`
	RedactedTarget string `json:"target,omitempty"`
	RetryCount     int    `json:"retry_count"`
}
