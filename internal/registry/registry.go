// SPDX-License-Identifier: MIT

// Package registry provides the camera endpoint registry the engine
// reconciles its session set against. The engine only reads snapshots and
// subscribes to change events; it never owns endpoint data.
package registry

// Camera is the immutable identity and connection facts for one camera.
type Camera struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
}

// EventKind classifies registry change events.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event is a single registry change.
type Event struct {
	Kind   EventKind
	Camera Camera
}

// Registry is the read-side contract consumed by the engine.
type Registry interface {
	// Snapshot returns the current cameras in registration order.
	Snapshot() []Camera
	// Subscribe returns a channel of change events and a cancel function.
	// Events observed after the Snapshot call are not deduplicated against
	// it; consumers reconcile idempotently.
	Subscribe() (<-chan Event, func())
}
