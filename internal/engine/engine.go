// SPDX-License-Identifier: MIT

// Package engine is the lifecycle orchestrator: it reconciles the session
// set against the camera registry, translates visibility events into
// admission requests, wires grant decisions to session transitions and
// fans aggregate status out to observers.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mhartig/gridcam/internal/admission"
	"github.com/mhartig/gridcam/internal/layout"
	"github.com/mhartig/gridcam/internal/log"
	"github.com/mhartig/gridcam/internal/player"
	"github.com/mhartig/gridcam/internal/registry"
	"github.com/mhartig/gridcam/internal/secrets"
	"github.com/mhartig/gridcam/internal/session"
)

// Options configure the engine.
type Options struct {
	Capacity     int // maximum simultaneous Connecting/Live sessions
	MinCellWidth int // layout clamp, logical units
	Session      session.Config
}

type eventKind int

const (
	evAppear eventKind = iota
	evDisappear
	evRetry
	evViewport
)

type event struct {
	kind     eventKind
	cameraID string
	width    int
	height   int
}

type sessionHandle struct {
	s    *session.Session
	done chan struct{}
}

// Engine coordinates sessions, admission and visibility. One Engine exists
// per process; all its loop state is owned by the Run goroutine.
type Engine struct {
	reg     registry.Registry
	store   secrets.Store
	factory player.Factory
	ctrl    *admission.Controller
	opts    Options
	logger  zerolog.Logger

	events chan event
	done   chan struct{}

	// Observable state, written by session goroutines and the Run loop,
	// read by the API.
	mu       sync.RWMutex
	status   map[string]session.Status
	width    int
	height   int
	subs     map[int]chan map[string]session.Status
	nextSub  int

	// Owned by the Run goroutine.
	sessions map[string]*sessionHandle
	visible  map[string]struct{}
	granted  map[string]struct{}
	wg       sync.WaitGroup
}

// New creates an engine over the given collaborators.
func New(reg registry.Registry, store secrets.Store, factory player.Factory, opts Options) (*Engine, error) {
	ctrl, err := admission.New(opts.Capacity)
	if err != nil {
		return nil, err
	}
	if opts.MinCellWidth <= 0 {
		opts.MinCellWidth = layout.DefaultMinCellWidth
	}
	return &Engine{
		reg:      reg,
		store:    store,
		factory:  factory,
		ctrl:     ctrl,
		opts:     opts,
		logger:   log.WithComponent("engine"),
		events:   make(chan event, 256),
		done:     make(chan struct{}),
		status:   make(map[string]session.Status),
		subs:     make(map[int]chan map[string]session.Status),
		sessions: make(map[string]*sessionHandle),
		visible:  make(map[string]struct{}),
		granted:  make(map[string]struct{}),
	}, nil
}

// Run drives the engine until ctx is done. On return every grant has been
// revoked and every player handle released.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.ctrl.Run(gctx) })
	g.Go(func() error { return e.loop(gctx) })
	return g.Wait()
}

func (e *Engine) loop(ctx context.Context) error {
	defer close(e.done)
	defer e.shutdown()

	regEvents, cancelReg := e.reg.Subscribe()
	defer cancelReg()

	for _, cam := range e.reg.Snapshot() {
		e.addCamera(ctx, cam)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rev, ok := <-regEvents:
			if !ok {
				regEvents = nil
				continue
			}
			e.onRegistryEvent(ctx, rev)
		case n := <-e.ctrl.Notices():
			e.onNotice(ctx, n)
		case ev := <-e.events:
			e.onEvent(ctx, ev)
		}
	}
}

// Appear reports that a camera came on-screen.
func (e *Engine) Appear(cameraID string) {
	e.post(event{kind: evAppear, cameraID: cameraID})
}

// Disappear reports that a camera went off-screen.
func (e *Engine) Disappear(cameraID string) {
	e.post(event{kind: evDisappear, cameraID: cameraID})
}

// Retry requests a manual reconnect of a failed camera.
func (e *Engine) Retry(cameraID string) error {
	e.mu.RLock()
	_, known := e.status[cameraID]
	e.mu.RUnlock()
	if !known {
		return fmt.Errorf("engine: unknown camera %q", cameraID)
	}
	e.post(event{kind: evRetry, cameraID: cameraID})
	return nil
}

// SetViewport records the current viewport geometry.
func (e *Engine) SetViewport(width, height int) {
	e.mu.Lock()
	e.width = width
	e.height = height
	e.mu.Unlock()
	e.post(event{kind: evViewport, width: width, height: height})
}

// SetCapacity changes the admission budget at runtime.
func (e *Engine) SetCapacity(ctx context.Context, n int) error {
	return e.ctrl.SetCapacity(ctx, n)
}

// Columns returns the current grid column count for the registered wall.
func (e *Engine) Columns() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return layout.ColumnsMin(len(e.status), e.width, e.height, e.opts.MinCellWidth)
}

// Snapshot returns a copy of the status map.
func (e *Engine) Snapshot() map[string]session.Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]session.Status, len(e.status))
	for id, st := range e.status {
		out[id] = st
	}
	return out
}

// Status returns one camera's status.
func (e *Engine) Status(cameraID string) (session.Status, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.status[cameraID]
	return st, ok
}

// Subscribe returns a channel receiving a full status snapshot after every
// transition, and a cancel function. Slow subscribers skip intermediate
// snapshots instead of blocking the engine.
func (e *Engine) Subscribe() (<-chan map[string]session.Status, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan map[string]session.Status, 16)
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) onEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case evAppear:
		if _, ok := e.sessions[ev.cameraID]; !ok {
			e.logger.Warn().Str(log.FieldCameraID, ev.cameraID).Msg("appear event for unregistered camera")
			return
		}
		if _, already := e.visible[ev.cameraID]; already {
			return
		}
		e.visible[ev.cameraID] = struct{}{}
		// Session transitions happen on the grant notice, not here.
		res, err := e.ctrl.Request(ctx, ev.cameraID)
		if err != nil {
			return
		}
		e.logger.Debug().
			Str(log.FieldCameraID, ev.cameraID).
			Str(log.FieldEvent, string(res)).
			Msg("visibility appear")
	case evDisappear:
		if _, ok := e.visible[ev.cameraID]; !ok {
			return
		}
		delete(e.visible, ev.cameraID)
		delete(e.granted, ev.cameraID)
		if err := e.ctrl.Release(ctx, ev.cameraID); err != nil {
			return
		}
		if h, ok := e.sessions[ev.cameraID]; ok {
			h.s.Revoke()
		}
	case evRetry:
		if h, ok := e.sessions[ev.cameraID]; ok {
			h.s.Retry()
		}
	case evViewport:
		e.logger.Debug().
			Int("width", ev.width).
			Int("height", ev.height).
			Int("columns", e.Columns()).
			Msg("viewport changed")
	}
}

func (e *Engine) onNotice(ctx context.Context, n admission.Notice) {
	h, exists := e.sessions[n.CameraID]
	switch n.Kind {
	case admission.NoticeGranted:
		_, stillVisible := e.visible[n.CameraID]
		if !exists || !stillVisible {
			// The camera left between queueing and promotion; hand the
			// slot back so the next in line gets it.
			_ = e.ctrl.Release(ctx, n.CameraID)
			return
		}
		e.granted[n.CameraID] = struct{}{}
		h.s.Grant()
	case admission.NoticeRevoked:
		delete(e.granted, n.CameraID)
		if exists {
			h.s.Revoke()
		}
	}
}

func (e *Engine) onRegistryEvent(ctx context.Context, rev registry.Event) {
	switch rev.Kind {
	case registry.EventAdded:
		e.addCamera(ctx, rev.Camera)
	case registry.EventUpdated:
		if h, ok := e.sessions[rev.Camera.ID]; ok {
			h.s.Update(rev.Camera)
		} else {
			e.addCamera(ctx, rev.Camera)
		}
	case registry.EventRemoved:
		e.removeCamera(ctx, rev.Camera.ID)
	}
}

func (e *Engine) addCamera(ctx context.Context, cam registry.Camera) {
	if _, exists := e.sessions[cam.ID]; exists {
		return
	}
	s := session.New(cam, e.opts.Session, e.store, e.factory, e.applyStatus)
	h := &sessionHandle{s: s, done: make(chan struct{})}
	e.sessions[cam.ID] = h

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(h.done)
		_ = s.Run(ctx)
	}()

	e.logger.Info().Str(log.FieldCameraID, cam.ID).Msg("camera registered")
}

func (e *Engine) removeCamera(ctx context.Context, cameraID string) {
	h, ok := e.sessions[cameraID]
	if !ok {
		return
	}
	if _, wasVisible := e.visible[cameraID]; wasVisible {
		delete(e.visible, cameraID)
		_ = e.ctrl.Release(ctx, cameraID)
	}
	delete(e.granted, cameraID)
	delete(e.sessions, cameraID)

	h.s.Close()
	<-h.done

	e.mu.Lock()
	delete(e.status, cameraID)
	e.mu.Unlock()
	e.publish()

	e.logger.Info().Str(log.FieldCameraID, cameraID).Msg("camera unregistered")
}

// shutdown forces every session to rest and waits until all player handles
// are released.
func (e *Engine) shutdown() {
	for _, h := range e.sessions {
		h.s.Close()
	}
	e.wg.Wait()
	e.logger.Info().Msg("engine drained")
}

// applyStatus is the session notify sink. It runs on session goroutines and
// must not call back into them.
func (e *Engine) applyStatus(st session.Status) {
	e.mu.Lock()
	e.status[st.CameraID] = st
	e.mu.Unlock()
	e.publish()
}

// publish fans the current snapshot out to subscribers.
func (e *Engine) publish() {
	snap := e.Snapshot()
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
