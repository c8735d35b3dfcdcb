// SPDX-License-Identifier: MIT

package player

import (
	"context"
	"sync"
	"sync/atomic"
)

// Fake is a scriptable player for tests. Tests drive it with Emit and
// inspect StartedTarget and StopCount.
type Fake struct {
	mu      sync.Mutex
	events  chan Event
	target  string
	started bool
	stopped bool

	stopCount  atomic.Int32
	startErr   error
	OnStart    func(target string) // optional hook, called under no lock
	OnStop     func()
}

// NewFake creates an idle fake player.
func NewFake() *Fake {
	return &Fake{events: make(chan Event, 16)}
}

// FailStartWith makes the next Start call return err.
func (f *Fake) FailStartWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// Start implements Player.
func (f *Fake) Start(_ context.Context, target string) error {
	f.mu.Lock()
	if f.startErr != nil {
		err := f.startErr
		f.mu.Unlock()
		return err
	}
	f.target = target
	f.started = true
	hook := f.OnStart
	f.mu.Unlock()

	if hook != nil {
		hook(target)
	}
	return nil
}

// Stop implements Player. Safe to call multiple times; each call is counted
// so tests can assert the exactly-once invariant.
func (f *Fake) Stop() {
	f.stopCount.Add(1)

	f.mu.Lock()
	alreadyStopped := f.stopped
	f.stopped = true
	hook := f.OnStop
	f.mu.Unlock()

	if !alreadyStopped {
		close(f.events)
	}
	if hook != nil {
		hook()
	}
}

// Events implements Player.
func (f *Fake) Events() <-chan Event { return f.events }

// Emit delivers an event to the consumer. Emitting after Stop is a test bug
// and panics on the closed channel.
func (f *Fake) Emit(ev Event) { f.events <- ev }

// StartedTarget returns the target passed to Start, or "".
func (f *Fake) StartedTarget() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

// Started reports whether Start was called.
func (f *Fake) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// StopCount returns how many times Stop was called.
func (f *Fake) StopCount() int { return int(f.stopCount.Load()) }
