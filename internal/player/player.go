// SPDX-License-Identifier: MIT

// Package player defines the contract between the engine and the external
// media player. The engine only starts and stops handles and consumes the
// asynchronous event stream; decoding is entirely the player's business.
package player

import "context"

// ErrorKind classifies player-reported failures. Retryability is decided by
// the session layer, not here.
type ErrorKind string

const (
	ErrorAuth        ErrorKind = "auth_failed"
	ErrorTimeout     ErrorKind = "timeout"
	ErrorTransport   ErrorKind = "transport"
	ErrorUnsupported ErrorKind = "unsupported"
)

// EventKind enumerates the player's lifecycle signals.
type EventKind string

const (
	EventReady     EventKind = "ready"
	EventError     EventKind = "error"
	EventStalled   EventKind = "stalled"
	EventRecovered EventKind = "recovered"
)

// Event is a single asynchronous player signal. Error and Message are only
// set for EventError.
type Event struct {
	Kind    EventKind
	Error   ErrorKind
	Message string
}

// Player is one decode handle. Start is called at most once per handle;
// Stop must be idempotent-safe at the handle level and release all
// resources. Events is closed after Stop returns or the handle dies.
type Player interface {
	Start(ctx context.Context, target string) error
	Stop()
	Events() <-chan Event
}

// Factory creates a fresh handle per connection attempt.
type Factory interface {
	New(cameraID string) Player
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(cameraID string) Player

// New implements Factory.
func (f FactoryFunc) New(cameraID string) Player { return f(cameraID) }
