// SPDX-License-Identifier: MIT

// Package admission owns the process-wide concurrency budget for active
// stream sessions. All grant state lives behind a single goroutine; callers
// interact via message passing and never lock shared counters directly.
package admission

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mhartig/gridcam/internal/log"
	"github.com/mhartig/gridcam/internal/metrics"
)

// Result is the synchronous outcome of a grant request.
type Result string

const (
	ResultGranted Result = "granted"
	ResultQueued  Result = "queued"
)

// NoticeKind classifies asynchronous grant decisions.
type NoticeKind string

const (
	NoticeGranted NoticeKind = "granted"
	NoticeRevoked NoticeKind = "revoked"
)

// Notice is an asynchronous grant decision. Every grant and every
// controller-initiated revocation is announced here, including grants that
// were also reported synchronously from Request; consumers can drive all
// session transitions from this one stream.
type Notice struct {
	Kind     NoticeKind
	CameraID string
}

// Stats is a point-in-time view of the budget.
type Stats struct {
	Capacity int
	Grants   int
	Queued   int
}

const noticeBuffer = 1024

type msgKind int

const (
	msgRequest msgKind = iota
	msgRelease
	msgSetCapacity
	msgStats
)

type message struct {
	kind     msgKind
	cameraID string
	capacity int
	reply    chan reply
}

type reply struct {
	result Result
	stats  Stats
	err    error
}

// Controller serializes all budget mutations through its Run goroutine.
type Controller struct {
	msgs    chan message
	notices chan Notice
	logger  zerolog.Logger

	// Owned exclusively by the Run goroutine.
	capacity   int
	grantOrder []string
	granted    map[string]struct{}
	queue      []string
	queued     map[string]struct{}
}

// New creates a controller with the given total capacity.
func New(capacity int) (*Controller, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("admission: capacity must be >= 0, got %d", capacity)
	}
	return &Controller{
		msgs:     make(chan message),
		notices:  make(chan Notice, noticeBuffer),
		logger:   log.WithComponent("admission"),
		capacity: capacity,
		granted:  make(map[string]struct{}),
		queued:   make(map[string]struct{}),
	}, nil
}

// Run processes messages until ctx is done. It must be running for any of
// the other methods to return.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-c.msgs:
			c.handle(m)
		}
	}
}

// Notices returns the asynchronous decision stream.
func (c *Controller) Notices() <-chan Notice { return c.notices }

// Request asks for a grant. Already-granted and already-queued cameras are
// idempotent: they keep their position and no duplicate is enqueued.
func (c *Controller) Request(ctx context.Context, cameraID string) (Result, error) {
	r, err := c.send(ctx, message{kind: msgRequest, cameraID: cameraID})
	return r.result, err
}

// Release gives up a camera's grant or queue slot, promoting the queue head
// into any freed capacity.
func (c *Controller) Release(ctx context.Context, cameraID string) error {
	_, err := c.send(ctx, message{kind: msgRelease, cameraID: cameraID})
	return err
}

// SetCapacity changes the total capacity. Shrinking below the current grant
// count revokes the most recently granted cameras first, so long-established
// connections are disturbed last; revoked cameras rejoin the queue head in
// their original request order.
func (c *Controller) SetCapacity(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("admission: capacity must be >= 0, got %d", n)
	}
	_, err := c.send(ctx, message{kind: msgSetCapacity, capacity: n})
	return err
}

// Stats returns the current budget counters.
func (c *Controller) Stats(ctx context.Context) (Stats, error) {
	r, err := c.send(ctx, message{kind: msgStats})
	return r.stats, err
}

func (c *Controller) send(ctx context.Context, m message) (reply, error) {
	m.reply = make(chan reply, 1)
	select {
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case c.msgs <- m:
	}
	select {
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case r := <-m.reply:
		return r, r.err
	}
}

func (c *Controller) handle(m message) {
	var r reply
	switch m.kind {
	case msgRequest:
		r.result = c.request(m.cameraID)
	case msgRelease:
		c.release(m.cameraID)
	case msgSetCapacity:
		c.setCapacity(m.capacity)
	case msgStats:
		r.stats = Stats{Capacity: c.capacity, Grants: len(c.grantOrder), Queued: len(c.queue)}
	}
	metrics.SetAdmissionState(c.capacity, len(c.grantOrder), len(c.queue))
	m.reply <- r
}

func (c *Controller) request(cameraID string) Result {
	if _, ok := c.granted[cameraID]; ok {
		return ResultGranted
	}
	if _, ok := c.queued[cameraID]; ok {
		return ResultQueued
	}
	if len(c.grantOrder) < c.capacity {
		c.grant(cameraID)
		metrics.IncAdmissionRequest(string(ResultGranted))
		return ResultGranted
	}
	c.queue = append(c.queue, cameraID)
	c.queued[cameraID] = struct{}{}
	metrics.IncAdmissionRequest(string(ResultQueued))
	c.logger.Debug().
		Str(log.FieldCameraID, cameraID).
		Int(log.FieldQueueDepth, len(c.queue)).
		Msg("capacity exhausted, queued")
	return ResultQueued
}

func (c *Controller) release(cameraID string) {
	if _, ok := c.granted[cameraID]; ok {
		delete(c.granted, cameraID)
		for i, id := range c.grantOrder {
			if id == cameraID {
				c.grantOrder = append(c.grantOrder[:i], c.grantOrder[i+1:]...)
				break
			}
		}
		c.promote()
		return
	}
	if _, ok := c.queued[cameraID]; ok {
		delete(c.queued, cameraID)
		for i, id := range c.queue {
			if id == cameraID {
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				break
			}
		}
	}
}

func (c *Controller) setCapacity(n int) {
	c.logger.Info().
		Int(log.FieldCapacity, n).
		Int(log.FieldGrants, len(c.grantOrder)).
		Msg("capacity changed")
	c.capacity = n

	// LIFO revocation: peel most recent grants back into the queue head.
	for len(c.grantOrder) > c.capacity {
		last := c.grantOrder[len(c.grantOrder)-1]
		c.grantOrder = c.grantOrder[:len(c.grantOrder)-1]
		delete(c.granted, last)
		c.queue = append([]string{last}, c.queue...)
		c.queued[last] = struct{}{}
		c.notify(Notice{Kind: NoticeRevoked, CameraID: last})
	}
	c.promote()
}

func (c *Controller) promote() {
	for len(c.grantOrder) < c.capacity && len(c.queue) > 0 {
		head := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.queued, head)
		c.grant(head)
	}
}

func (c *Controller) grant(cameraID string) {
	c.grantOrder = append(c.grantOrder, cameraID)
	c.granted[cameraID] = struct{}{}
	c.notify(Notice{Kind: NoticeGranted, CameraID: cameraID})
}

func (c *Controller) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
		// The buffer is sized well beyond any realistic camera count; a
		// full buffer means the consumer is gone.
		c.logger.Error().
			Str(log.FieldCameraID, n.CameraID).
			Str(log.FieldEvent, string(n.Kind)).
			Msg("notice buffer full, dropping decision")
	}
}
