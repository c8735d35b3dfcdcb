// SPDX-License-Identifier: MIT

package registry

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mhartig/gridcam/internal/log"
)

const subscriberBuffer = 256

// Memory is an in-process registry, used by tests and API-driven setups.
type Memory struct {
	mu     sync.Mutex
	order  []string
	byID   map[string]Camera
	subs   map[int]chan Event
	nextID int
	logger zerolog.Logger
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]Camera),
		subs:   make(map[int]chan Event),
		logger: log.WithComponent("registry"),
	}
}

// Upsert adds a camera or updates an existing one.
func (m *Memory) Upsert(cam Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kind := EventUpdated
	if existing, exists := m.byID[cam.ID]; !exists {
		kind = EventAdded
		m.order = append(m.order, cam.ID)
	} else if existing == cam {
		return
	}
	m.byID[cam.ID] = cam
	m.broadcastLocked(Event{Kind: kind, Camera: cam})
}

// Remove deletes a camera. Unknown IDs are ignored.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, exists := m.byID[id]
	if !exists {
		return
	}
	delete(m.byID, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.broadcastLocked(Event{Kind: EventRemoved, Camera: cam})
}

// Snapshot returns the current cameras in registration order.
func (m *Memory) Snapshot() []Camera {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Camera, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Subscribe returns a change event channel and its cancel function.
func (m *Memory) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Memory) broadcastLocked(ev Event) {
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn().
				Str(log.FieldCameraID, ev.Camera.ID).
				Str(log.FieldEvent, string(ev.Kind)).
				Msg("subscriber buffer full, dropping registry event")
		}
	}
}
