// SPDX-License-Identifier: Apache-2.0

// Package client wires the protocol packages into the operations the command
// line exposes. All dependencies are explicit; nothing here reads globals.
package client

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/adbx/adbx/internal/config"
	"github.com/adbx/adbx/internal/device"
	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/progress"
	"github.com/adbx/adbx/internal/server"
	"github.com/adbx/adbx/internal/shell"
	"github.com/adbx/adbx/internal/transfer"
	"github.com/adbx/adbx/internal/transport"
	"github.com/adbx/adbx/models"
)

// App is the operation layer: one method per user-facing operation, taking
// already-parsed intents and returning typed results. Formatting stays with
// the caller.
type App struct {
	cfg *config.StructuredConfig
	log *logger.Logger

	registry *device.Registry
	selector *device.Selector
	engine   *transfer.Engine
	shell    *shell.Executor
	server   *server.Controller
}

// NewApp wires the application from its configuration. sinks builds one
// progress sink per transferred file and may be nil.
func NewApp(cfg *config.StructuredConfig, sinks progress.Factory, log *logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}

	dialer := transport.Dialer{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Timeout: cfg.Server.DialTimeout,
		Log:     log.GetChildLogger(),
	}

	registry := device.NewRegistry(dialer, device.RetryPolicy{
		Attempts: cfg.Registry.ListRetryAttempts,
		Delay:    cfg.Registry.ListRetryDelay,
	}, log)

	return &App{
		cfg:      cfg,
		log:      log,
		registry: registry,
		selector: device.NewSelector(registry, cfg, log),
		engine:   transfer.NewEngine(dialer, cfg.Transfer.Workers, sinks, log),
		shell:    shell.NewExecutor(dialer, log),
		server:   server.NewController(dialer, cfg.Server.Binary, server.StartPolicy{
			Attempts: cfg.Server.StartAttempts,
			Backoff:  cfg.Server.StartBackoff,
		}, log),
	}
}

// Devices lists every device the server knows about.
func (a *App) Devices(ctx context.Context) ([]models.Device, error) {
	return a.registry.List(ctx)
}

// TransferOptions carries the caller-facing transfer switches.
type TransferOptions struct {
	Recursive     bool
	SkipUnchanged bool
}

// Push copies source from the local file system to dest on the device
// matching identifier.
func (a *App) Push(ctx context.Context, identifier, source, dest string, opts TransferOptions) ([]models.TransferOutcome, error) {
	log := a.log.WithOperation("push")
	d, err := a.target(ctx, log, identifier)
	if err != nil {
		return nil, err
	}
	outcomes, err := a.engine.Push(ctx, models.TransferRequest{
		Serial:        d.Serial,
		Source:        source,
		Dest:          dest,
		Direction:     models.ToDevice,
		Recursive:     opts.Recursive,
		SkipUnchanged: opts.SkipUnchanged,
	})
	if err == nil {
		log.Info().
			Int("files", len(outcomes)).
			Int("failed", len(models.Failed(outcomes))).
			Msg("push finished")
	}
	return outcomes, err
}

// Pull copies source on the device matching identifier to dest locally. An
// empty dest lands the file under the configured output directory.
func (a *App) Pull(ctx context.Context, identifier, source, dest string, opts TransferOptions) ([]models.TransferOutcome, error) {
	log := a.log.WithOperation("pull")
	d, err := a.target(ctx, log, identifier)
	if err != nil {
		return nil, err
	}
	if dest == "" {
		dest = filepath.Join(a.cfg.Transfer.OutputDir, path.Base(source))
	}
	outcomes, err := a.engine.Pull(ctx, models.TransferRequest{
		Serial:    d.Serial,
		Source:    source,
		Dest:      dest,
		Direction: models.FromDevice,
		Recursive: opts.Recursive,
	})
	if err == nil {
		log.Info().
			Int("files", len(outcomes)).
			Int("failed", len(models.Failed(outcomes))).
			Msg("pull finished")
	}
	return outcomes, err
}

// Shell runs command on the device matching identifier, relaying output
// through opts. An empty command opens an interactive session.
func (a *App) Shell(ctx context.Context, identifier, command string, opts shell.Options) (models.ShellResult, error) {
	log := a.log.WithOperation("shell")
	d, err := a.target(ctx, log, identifier)
	if err != nil {
		return models.ShellResult{}, err
	}
	res, err := a.shell.Run(ctx, d.Serial, command, opts)
	if err == nil {
		log.Info().Int64("bytes", res.BytesRelayed).Msg("shell session ended")
	}
	return res, err
}

// ServerStatus probes the background server.
func (a *App) ServerStatus(ctx context.Context) (server.Status, error) {
	return a.server.Status(ctx)
}

// StartServer spawns the background server and waits for it to answer.
func (a *App) StartServer(ctx context.Context) error {
	return a.server.Start(ctx)
}

// StopServer shuts the background server down; already stopped is success.
func (a *App) StopServer(ctx context.Context) error {
	return a.server.Stop(ctx)
}

// RestartServer stops and starts the background server.
func (a *App) RestartServer(ctx context.Context) error {
	return a.server.Restart(ctx)
}

// target resolves identifier to a single ready device. log carries the
// calling operation's context so the selection shows up under its id.
func (a *App) target(ctx context.Context, log *logger.Logger, identifier string) (models.Device, error) {
	d, err := a.selector.Select(ctx, identifier)
	if err != nil {
		return models.Device{}, err
	}
	if err := device.EnsureReady(d); err != nil {
		return models.Device{}, fmt.Errorf("select %s: %w", d.Serial, err)
	}
	log.Debug().Str("serial", d.Serial).Msg("device selected")
	return d, nil
}
