// SPDX-License-Identifier: Apache-2.0

// Package shell runs remote commands and interactive sessions over the shell
// service. Output is one undifferentiated byte stream relayed in arrival
// order; there is no stdout/stderr separation on the wire.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/protocol"
	"github.com/adbx/adbx/internal/transport"
	"github.com/adbx/adbx/models"
)

// Options shapes one shell session.
type Options struct {
	// Output receives the remote output stream. nil discards it.
	Output io.Writer

	// Input, when non-nil, is relayed into the session concurrently,
	// making it interactive. The session still only ends when the remote
	// side closes.
	//
	// The relay cannot interrupt a Read in progress: when the session ends
	// while Input still blocks (stdin, typically), its goroutine lingers
	// until that Read returns and the write to the closed session fails.
	// Callers owning a closable Input should close it after Run returns.
	Input io.Reader
}

// Executor runs shell sessions against one device at a time, each on a
// dedicated connection.
type Executor struct {
	dialer transport.Dialer
	log    *logger.Logger
}

// NewExecutor builds an Executor.
func NewExecutor(dialer transport.Dialer, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{dialer: dialer, log: log}
}

// Run executes command on the device identified by serial, relaying output
// until the remote side closes the stream. An empty command requests an
// interactive session; pair it with opts.Input.
//
// The base shell service carries no exit status channel, so the result's
// ExitCode reports ok=false and callers assume success. Cancelling ctx
// closes the session and returns transport.ErrCancelled.
func (x *Executor) Run(ctx context.Context, serial, command string, opts Options) (models.ShellResult, error) {
	conn, err := x.dialer.Dial(ctx)
	if err != nil {
		return models.ShellResult{}, err
	}
	defer conn.Close()

	if err := conn.RoundTrip(protocol.TransportRequest(serial)); err != nil {
		return models.ShellResult{}, err
	}
	if err := conn.RoundTrip(protocol.ShellRequest(command)); err != nil {
		return models.ShellResult{}, err
	}
	x.log.Debug().Str("serial", serial).Str("command", command).Msg("shell session open")

	if opts.Input != nil {
		// input relay ends when the session does; its socket errors are
		// the session teardown, not failures to report. A Read still in
		// flight keeps the goroutine alive until it returns; see
		// Options.Input.
		go func() {
			_, _ = io.Copy(conn, opts.Input)
		}()
	}

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	relayed, err := io.Copy(out, conn)
	if err != nil && !errors.Is(err, transport.ErrBrokenStream) {
		return models.ShellResult{}, fmt.Errorf("relay shell output: %w", err)
	}

	return models.NewShellResult(command, relayed), nil
}

// GetProp reads one system property, trimmed of the trailing newline the
// device appends. A missing property reads as an empty string.
func (x *Executor) GetProp(ctx context.Context, serial, name string) (string, error) {
	var out bytes.Buffer
	if _, err := x.Run(ctx, serial, "getprop "+name, Options{Output: &out}); err != nil {
		return "", fmt.Errorf("getprop %s: %w", name, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// GetProps reads several system properties concurrently, one session each.
func (x *Executor) GetProps(ctx context.Context, serial string, names []string) (map[string]string, error) {
	values := make([]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			value, err := x.GetProp(gctx, serial, name)
			if err != nil {
				return err
			}
			values[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	props := make(map[string]string, len(names))
	for i, name := range names {
		props[name] = values[i]
	}
	return props, nil
}
