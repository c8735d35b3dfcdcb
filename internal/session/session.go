// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/mhartig/gridcam/internal/creds"
	"github.com/mhartig/gridcam/internal/log"
	"github.com/mhartig/gridcam/internal/metrics"
	"github.com/mhartig/gridcam/internal/player"
	"github.com/mhartig/gridcam/internal/registry"
	"github.com/mhartig/gridcam/internal/secrets"
)

// Config carries the per-session timing policy.
type Config struct {
	ConnectTimeout  time.Duration // Connecting -> Failed(timeout)
	DegradedTimeout time.Duration // Degraded -> Failed(timeout)
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	MaxAuthFailures int // consecutive auth failures before auto-retry stops
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.DegradedTimeout <= 0 {
		c.DegradedTimeout = 15 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.MaxAuthFailures <= 0 {
		c.MaxAuthFailures = 3
	}
	return c
}

const secretLookupTimeout = 5 * time.Second

type cmdKind int

const (
	cmdGrant cmdKind = iota
	cmdRevoke
	cmdRetry
	cmdUpdate
	cmdClose
)

type command struct {
	kind cmdKind
	cam  registry.Camera
	ack  chan struct{}
}

// timer wraps time.Timer with a nil-able channel so inactive timers vanish
// from the run loop's select.
type timer struct {
	t *time.Timer
	C <-chan time.Time
}

func (tm *timer) arm(d time.Duration) {
	tm.disarm()
	tm.t = time.NewTimer(d)
	tm.C = tm.t.C
}

func (tm *timer) disarm() {
	if tm.t != nil {
		tm.t.Stop()
		tm.t = nil
		tm.C = nil
	}
}

// Session is the actor owning one camera's connection lifecycle. All fields
// below cmds are owned by the Run goroutine.
type Session struct {
	cameraID string
	cfg      Config
	store    secrets.Store
	factory  player.Factory
	notify   func(Status) // must not call back into the session
	cmds     chan command
	done     chan struct{}
	logger   zerolog.Logger

	cam          registry.Camera
	state        State
	reason       Reason
	granted      bool
	retryCount   int
	authFailures int
	generation   uint64
	redacted     string
	lastAttempt  time.Time

	current      player.Player
	playerEvents <-chan player.Event

	connectT  timer
	degradedT timer
	retryT    timer
	backoff   *backoff.ExponentialBackOff
}

// New creates a session in StateIdle. Run must be started for the session
// to process anything.
func New(cam registry.Camera, cfg Config, store secrets.Store, factory player.Factory, notify func(Status)) *Session {
	cfg = cfg.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffBase
	b.MaxInterval = cfg.BackoffCap
	b.Multiplier = 2
	b.RandomizationFactor = 0.5

	return &Session{
		cameraID: cam.ID,
		cfg:      cfg,
		store:    store,
		factory:  factory,
		notify:   notify,
		cmds:     make(chan command),
		done:     make(chan struct{}),
		logger:   log.WithCamera("session", cam.ID),
		cam:      cam,
		state:    StateIdle,
		backoff:  b,
	}
}

// Grant permits the session to connect. Idempotent.
func (s *Session) Grant() { s.exec(command{kind: cmdGrant}) }

// Revoke withdraws the grant and forces the session to StateIdle,
// cancelling any in-flight attempt. Cancellation always wins: player events
// arriving after the revoke are discarded.
func (s *Session) Revoke() { s.exec(command{kind: cmdRevoke}) }

// Retry re-arms a session whose failure was classified non-retryable.
// No-op outside StateFailed.
func (s *Session) Retry() { s.exec(command{kind: cmdRetry}) }

// Update applies a changed endpoint snapshot. Connection-relevant changes
// (URL, username) restart an active session; cosmetic changes do not.
func (s *Session) Update(cam registry.Camera) { s.exec(command{kind: cmdUpdate, cam: cam}) }

// Close stops the player, publishes StateIdle and terminates the Run
// goroutine. It returns once the goroutine has exited.
func (s *Session) Close() {
	s.exec(command{kind: cmdClose})
	<-s.done
}

// exec hands a command to the run loop and waits until it was applied, so
// callers observe their own commands in order.
func (s *Session) exec(c command) {
	c.ack = make(chan struct{})
	select {
	case s.cmds <- c:
	case <-s.done:
		return
	}
	select {
	case <-c.ack:
	case <-s.done:
	}
}

// Run processes commands, player events and timers until ctx is done or
// Close is called. The initial StateIdle status is published on entry.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.teardown()

	metrics.SessionsByState.WithLabelValues(string(StateIdle)).Inc()
	s.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.cmds:
			closing := c.kind == cmdClose
			s.apply(ctx, c)
			close(c.ack)
			if closing {
				return nil
			}
		case ev, ok := <-s.playerEvents:
			if !ok {
				// Current handle died and closed its stream; a pending
				// error event was delivered before the close.
				s.playerEvents = nil
				continue
			}
			s.onPlayerEvent(ev)
		case <-s.connectT.C:
			s.connectT.disarm()
			s.logger.Warn().Str(log.FieldReason, string(ReasonTimeout)).Msg("connection attempt timed out")
			s.fail(ReasonTimeout)
		case <-s.degradedT.C:
			s.degradedT.disarm()
			s.logger.Warn().Msg("stall exceeded degradation timeout")
			s.fail(ReasonTimeout)
		case <-s.retryT.C:
			s.retryT.disarm()
			s.onRetryTick(ctx)
		}
	}
}

func (s *Session) apply(ctx context.Context, c command) {
	switch c.kind {
	case cmdGrant:
		if s.granted {
			return
		}
		s.granted = true
		if s.state == StateIdle {
			s.connect(ctx)
		}
	case cmdRevoke:
		s.granted = false
		s.toIdle()
	case cmdRetry:
		if s.state != StateFailed || !s.granted {
			return
		}
		s.authFailures = 0
		s.retryT.disarm()
		s.logger.Info().Msg("manual retry requested")
		s.connect(ctx)
	case cmdUpdate:
		relevant := c.cam.URL != s.cam.URL || c.cam.Username != s.cam.Username
		s.cam = c.cam
		if relevant && s.state != StateIdle {
			s.logger.Info().Msg("endpoint changed, restarting connection")
			s.stopPlayer()
			s.connectT.disarm()
			s.degradedT.disarm()
			s.retryT.disarm()
			s.authFailures = 0
			if s.granted {
				s.connect(ctx)
			} else {
				s.setState(StateIdle, ReasonNone)
			}
			return
		}
		s.publish()
	case cmdClose:
		s.toIdle()
	}
}

// toIdle is the any-state path to rest: stop the player, cancel every
// timer, discard in-flight results.
func (s *Session) toIdle() {
	s.stopPlayer()
	s.connectT.disarm()
	s.degradedT.disarm()
	s.retryT.disarm()
	s.retryCount = 0
	s.authFailures = 0
	s.backoff.Reset()
	s.setState(StateIdle, ReasonNone)
}

func (s *Session) connect(ctx context.Context) {
	s.generation++
	s.lastAttempt = time.Now()

	sctx, cancel := context.WithTimeout(ctx, secretLookupTimeout)
	secret, _, err := s.store.Get(sctx, s.cam.ID)
	cancel()
	if err != nil {
		s.logger.Error().Err(err).Msg("secret lookup failed")
		s.fail(ReasonTransport)
		return
	}

	target, err := creds.Resolve(s.cam.URL, s.cam.Username, secret)
	if err != nil {
		if errors.Is(err, creds.ErrMalformedTarget) {
			s.logger.Error().Err(err).Msg("endpoint URL is malformed")
			s.fail(ReasonMalformedTarget)
			return
		}
		s.fail(ReasonTransport)
		return
	}
	s.redacted = target.Redacted

	// Fresh handle per attempt: stale decoder state cannot leak across
	// reconnects, and channel identity fences off late events from any
	// previous generation.
	p := s.factory.New(s.cam.ID)
	s.current = p
	s.playerEvents = p.Events()
	if err := p.Start(ctx, target.URL); err != nil {
		s.logger.Error().Err(err).Uint64(log.FieldGeneration, s.generation).Msg("player start failed")
		s.fail(ReasonTransport)
		return
	}

	s.connectT.arm(s.cfg.ConnectTimeout)
	s.setState(StateConnecting, ReasonNone)
}

func (s *Session) onPlayerEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventReady:
		if s.state != StateConnecting {
			return
		}
		s.connectT.disarm()
		s.retryCount = 0
		s.authFailures = 0
		s.backoff.Reset()
		metrics.ConnectDuration.Observe(time.Since(s.lastAttempt).Seconds())
		s.setState(StateLive, ReasonNone)
	case player.EventError:
		reason := reasonFromPlayerError(ev.Error)
		s.logger.Warn().
			Str(log.FieldReason, string(reason)).
			Str("detail", ev.Message).
			Msg("player reported error")
		s.fail(reason)
	case player.EventStalled:
		if s.state != StateLive {
			return
		}
		s.degradedT.arm(s.cfg.DegradedTimeout)
		s.setState(StateDegraded, ReasonNone)
	case player.EventRecovered:
		if s.state != StateDegraded {
			return
		}
		s.degradedT.disarm()
		s.setState(StateLive, ReasonNone)
	}
}

func (s *Session) fail(reason Reason) {
	s.stopPlayer()
	s.connectT.disarm()
	s.degradedT.disarm()

	if reason == ReasonAuthFailed {
		s.authFailures++
	}
	s.setState(StateFailed, reason)

	if !s.granted || !reason.autoRetryable() {
		return
	}
	if reason == ReasonAuthFailed && s.authFailures >= s.cfg.MaxAuthFailures {
		s.logger.Warn().
			Int("consecutive_failures", s.authFailures).
			Msg("repeated authentication failures, waiting for manual retry")
		return
	}
	s.retryT.arm(s.backoff.NextBackOff())
}

func (s *Session) onRetryTick(ctx context.Context) {
	// Only reconnect while still granted; a revoke between arming and
	// firing wins and the session stays idle.
	if s.state != StateFailed || !s.granted {
		return
	}
	s.retryCount++
	metrics.RetriesTotal.Inc()
	s.logger.Info().Int(log.FieldRetries, s.retryCount).Msg("reconnecting after backoff")
	s.connect(ctx)
}

// stopPlayer releases the current handle. Each handle is stopped exactly
// once here; dropping the events channel discards anything that arrives
// late.
func (s *Session) stopPlayer() {
	if s.current == nil {
		return
	}
	s.current.Stop()
	s.current = nil
	s.playerEvents = nil
}

func (s *Session) setState(state State, reason Reason) {
	if s.state == state && s.reason == reason {
		return
	}
	s.logger.Info().
		Str(log.FieldOldState, string(s.state)).
		Str(log.FieldNewState, string(state)).
		Str(log.FieldReason, string(reason)).
		Msg("state transition")

	metrics.SessionsByState.WithLabelValues(string(s.state)).Dec()
	metrics.SessionsByState.WithLabelValues(string(state)).Inc()
	metrics.IncTransition(string(state), string(reason))

	s.state = state
	s.reason = reason
	s.publish()
}

func (s *Session) publish() {
	if s.notify == nil {
		return
	}
	s.notify(Status{
		CameraID:       s.cameraID,
		Name:           s.cam.Name,
		State:          s.state,
		Reason:         s.reason,
		RedactedTarget: s.redacted,
		RetryCount:     s.retryCount,
	})
}

func (s *Session) teardown() {
	s.stopPlayer()
	s.connectT.disarm()
	s.degradedT.disarm()
	s.retryT.disarm()
	metrics.SessionsByState.WithLabelValues(string(s.state)).Dec()
}
