// SPDX-License-Identifier: MIT

package player

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mhartig/gridcam/internal/creds"
	"github.com/mhartig/gridcam/internal/log"
)

// defaultReadyDelay is how long a spawned process must survive before the
// stream is considered ready. Decoders fail fast on unreachable or
// unauthorized targets.
const defaultReadyDelay = 2 * time.Second

// Command runs an external decoder process per handle. The command template
// is split on whitespace and "{url}" is substituted with the connection
// target. A process that outlives the ready delay reports ready; a process
// exit reports a transport error.
type Command struct {
	template   string
	readyDelay time.Duration
	events     chan Event
	cancel     context.CancelFunc
	stopped    atomic.Bool
	logger     zerolog.Logger
}

// NewCommandFactory returns a Factory spawning one process per attempt.
func NewCommandFactory(template string) Factory {
	return FactoryFunc(func(cameraID string) Player {
		return &Command{
			template:   template,
			readyDelay: defaultReadyDelay,
			events:     make(chan Event, 16),
			logger:     log.WithCamera("player", cameraID),
		}
	})
}

// Start implements Player.
func (c *Command) Start(_ context.Context, target string) error {
	args := strings.Fields(c.template)
	if len(args) == 0 {
		return fmt.Errorf("player: empty command template")
	}
	for i, a := range args {
		args[i] = strings.ReplaceAll(a, "{url}", target)
	}

	// The process lifetime is bound to Stop, not to the caller's context:
	// a connect attempt that succeeds outlives the attempt context.
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) // #nosec G204 -- operator-configured template
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("player: start %s: %w", args[0], err)
	}
	c.cancel = cancel
	c.logger.Debug().Str(log.FieldTarget, creds.Redact(target)).Msg("decoder process started")

	go c.supervise(cmd)
	return nil
}

func (c *Command) supervise(cmd *exec.Cmd) {
	defer close(c.events)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	ready := time.After(c.readyDelay)
	for {
		select {
		case <-ready:
			ready = nil
			c.events <- Event{Kind: EventReady}
		case err := <-waitCh:
			if c.stopped.Load() {
				return
			}
			msg := "decoder exited"
			if err != nil {
				msg = err.Error()
			}
			c.events <- Event{Kind: EventError, Error: ErrorTransport, Message: msg}
			return
		}
	}
}

// Stop implements Player. Kills the process and lets the supervisor close
// the event channel.
func (c *Command) Stop() {
	if c.stopped.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
}

// Events implements Player.
func (c *Command) Events() <-chan Event { return c.events }
