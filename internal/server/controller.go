// SPDX-License-Identifier: Apache-2.0

// Package server manages the background server's lifecycle: probing whether
// it runs, spawning it detached, and shutting it down.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/protocol"
	"github.com/adbx/adbx/internal/transport"
)

// State is the observed server state. Only two states are observable from
// the outside: a version request either succeeds or the connection is
// refused.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Status reports the probe result. Version carries the server's protocol
// version block and is only set when running.
type Status struct {
	State   State
	Version string
}

// StartPolicy bounds the readiness poll after spawning the server. Backoff
// doubles between attempts.
type StartPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Controller probes, starts and stops the background server.
type Controller struct {
	dialer transport.Dialer
	binary string
	policy StartPolicy
	log    *logger.Logger
}

// NewController builds a Controller. binary is the server executable to
// spawn on Start.
func NewController(dialer transport.Dialer, binary string, policy StartPolicy, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{dialer: dialer, binary: binary, policy: policy, log: log}
}

// Status asks the server for its version. A refused connection means the
// server is stopped, which is a valid answer, not an error.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	conn, err := c.dialer.Dial(ctx)
	if errors.Is(err, transport.ErrRefused) {
		return Status{State: StateStopped}, nil
	}
	if err != nil {
		return Status{}, err
	}
	defer conn.Close()

	if err := conn.RoundTrip(protocol.HostVersion); err != nil {
		return Status{}, err
	}
	version, err := conn.ReadHexBlock()
	if err != nil {
		return Status{}, fmt.Errorf("read version: %w", err)
	}
	return Status{State: StateRunning, Version: version}, nil
}

// Start spawns the server binary detached and polls until it answers.
// A server that is already running is left alone.
func (c *Controller) Start(ctx context.Context) error {
	status, err := c.Status(ctx)
	if err != nil {
		return err
	}
	if status.State == StateRunning {
		c.log.Debug().Str("version", status.Version).Msg("server already running")
		return nil
	}

	if err := c.spawn(); err != nil {
		return fmt.Errorf("spawn server: %w", err)
	}

	backoff := c.policy.Backoff
	for attempt := 0; attempt < c.policy.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: start aborted", transport.ErrCancelled)
		case <-time.After(backoff):
		}
		backoff *= 2

		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if status.State == StateRunning {
			c.log.Info().Str("version", status.Version).Msg("server started")
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrStartTimeout, c.policy.Attempts)
}

// spawnArgs builds the start-server invocation. The server must listen on
// the port this controller polls, so the configured port is always passed.
func (c *Controller) spawnArgs() []string {
	return []string{"-P", strconv.Itoa(c.dialer.Port), "start-server"}
}

// spawn launches the server binary with null stdio in its own process group
// so it outlives this process.
func (c *Controller) spawn() error {
	cmd := exec.Command(c.binary, c.spawnArgs()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	c.log.Debug().Str("binary", c.binary).Int("pid", cmd.Process.Pid).Msg("server spawned")
	return cmd.Process.Release()
}

// Stop asks the server to exit and polls until its port stops answering.
// An already-stopped server is success.
func (c *Controller) Stop(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx)
	if errors.Is(err, transport.ErrRefused) {
		return nil
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	// the server may drop the connection before acknowledging the kill
	if err := conn.RoundTrip(protocol.HostKill); err != nil && !errors.Is(err, transport.ErrBrokenStream) {
		return fmt.Errorf("kill server: %w", err)
	}

	backoff := c.policy.Backoff
	for attempt := 0; attempt < c.policy.Attempts; attempt++ {
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if status.State == StateStopped {
			c.log.Info().Msg("server stopped")
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: stop aborted", transport.ErrCancelled)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return ErrStopFailed
}

// Restart stops the server if it runs, then starts it again.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	return c.Start(ctx)
}
