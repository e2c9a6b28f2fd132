// SPDX-License-Identifier: Apache-2.0

// Package transfer moves files between the local file system and a device
// through the sync service. Every file travels on its own connection, so a
// bounded worker pool gives recursive transfers their parallelism without
// ever interleaving requests on one socket.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/progress"
	"github.com/adbx/adbx/internal/protocol"
	"github.com/adbx/adbx/internal/transport"
	"github.com/adbx/adbx/models"
)

// DefaultWorkers bounds the worker pool when the engine is built with a
// non-positive worker count.
const DefaultWorkers = 4

// Engine executes push and pull operations.
type Engine struct {
	dialer  transport.Dialer
	workers int
	sinks   progress.Factory
	log     *logger.Logger
}

// NewEngine builds an Engine. sinks builds one progress sink per transferred
// file and may be nil for silent transfers; workers bounds concurrent
// per-file sessions during recursive transfers.
func NewEngine(dialer transport.Dialer, workers int, sinks progress.Factory, log *logger.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if sinks == nil {
		sinks = progress.NopFactory
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{dialer: dialer, workers: workers, sinks: sinks, log: log}
}

// job is one file to move; outcomes keep the enumeration order of jobs.
type job struct {
	source string
	dest   string
}

// Push copies req.Source from the local file system to req.Dest on the
// device. A directory source needs req.Recursive and yields one outcome per
// file; per-file failures land in their outcome and do not abort siblings.
// The returned error is reserved for operation-level failures such as a
// missing source or cancellation.
func (e *Engine) Push(ctx context.Context, req models.TransferRequest) ([]models.TransferOutcome, error) {
	info, err := os.Stat(req.Source)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", req.Source, err)
	}

	if !info.IsDir() {
		outcome := e.pushFile(ctx, req.Serial, req.Source, req.Dest, req.SkipUnchanged)
		return []models.TransferOutcome{outcome}, cancelCause(outcome)
	}
	if !req.Recursive {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, req.Source)
	}

	jobs, err := localTree(req.Source, req.Dest)
	if err != nil {
		return nil, err
	}

	return e.runPool(ctx, jobs, func(ctx context.Context, j job) models.TransferOutcome {
		return e.pushFile(ctx, req.Serial, j.source, j.dest, req.SkipUnchanged)
	})
}

// Pull copies req.Source on the device to req.Dest on the local file system.
// Semantics mirror Push: recursive directory pulls produce ordered per-file
// outcomes, single-file pulls one outcome.
func (e *Engine) Pull(ctx context.Context, req models.TransferRequest) ([]models.TransferOutcome, error) {
	stat, err := e.statRemote(ctx, req.Serial, req.Source)
	if err != nil {
		return nil, err
	}
	if !stat.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrRemoteMissing, req.Source)
	}

	if !stat.IsDir() {
		outcome := e.pullFile(ctx, req.Serial, req.Source, req.Dest)
		return []models.TransferOutcome{outcome}, cancelCause(outcome)
	}
	if !req.Recursive {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, req.Source)
	}

	jobs, err := e.remoteTree(ctx, req.Serial, req.Source, req.Dest)
	if err != nil {
		return nil, err
	}

	return e.runPool(ctx, jobs, func(ctx context.Context, j job) models.TransferOutcome {
		return e.pullFile(ctx, req.Serial, j.source, j.dest)
	})
}

// runPool runs one worker per job, bounded by the engine's worker count.
// Outcomes keep job order. Only cancellation stops the pool early; it is
// also the only error runPool returns.
func (e *Engine) runPool(ctx context.Context, jobs []job, work func(context.Context, job) models.TransferOutcome) ([]models.TransferOutcome, error) {
	outcomes := make([]models.TransferOutcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, j := range jobs {
		g.Go(func() error {
			outcomes[i] = work(gctx, j)
			return cancelCause(outcomes[i])
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	e.log.Debug().
		Int("total", len(outcomes)).
		Int("failed", len(models.Failed(outcomes))).
		Msg("transfer finished")
	return outcomes, nil
}

// cancelCause promotes a cancelled outcome to an operation-level error;
// every other per-file failure stays inside the outcome.
func cancelCause(o models.TransferOutcome) error {
	if o.Err != nil && isCancelled(o.Err) {
		return o.Err
	}
	return nil
}

// openSync dials a fresh connection, binds it to the device and switches it
// into the sync service. The caller owns the returned connection.
func (e *Engine) openSync(ctx context.Context, serial string) (*transport.Conn, error) {
	conn, err := e.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.RoundTrip(protocol.TransportRequest(serial)); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.RoundTrip(protocol.SyncService); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// statRemote stats one remote path on a dedicated connection.
func (e *Engine) statRemote(ctx context.Context, serial, remote string) (models.FileStat, error) {
	conn, err := e.openSync(ctx, serial)
	if err != nil {
		return models.FileStat{}, err
	}
	defer conn.Close()

	return statOn(conn, remote)
}

// statOn stats remote on an already-open sync session.
func statOn(conn *transport.Conn, remote string) (models.FileStat, error) {
	if err := protocol.WriteSyncFrame(conn, protocol.SyncStat, []byte(remote)); err != nil {
		return models.FileStat{}, err
	}
	id, err := protocol.ReadSyncID(conn)
	if err != nil {
		return models.FileStat{}, err
	}
	if id != protocol.SyncStat {
		return models.FileStat{}, fmt.Errorf("%w: %s in stat reply", protocol.ErrUnexpectedCommand, id)
	}
	return protocol.ReadStatReply(conn)
}

// localTree walks a local directory and builds the job list, mapping each
// file to its path under dest. Remote paths always use forward slashes.
func localTree(source, dest string) ([]job, error) {
	var jobs []job
	err := filepath.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{source: p, dest: path.Join(dest, filepath.ToSlash(rel))})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", source, err)
	}
	return jobs, nil
}

// remoteTree lists a remote directory recursively and builds the job list,
// mapping each remote file to its path under dest.
func (e *Engine) remoteTree(ctx context.Context, serial, source, dest string) ([]job, error) {
	conn, err := e.openSync(ctx, serial)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var jobs []job
	var walk func(remote, local string) error
	walk = func(remote, local string) error {
		entries, err := listOn(conn, remote)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Name == "." || entry.Name == ".." {
				continue
			}
			childRemote := path.Join(remote, entry.Name)
			childLocal := filepath.Join(local, entry.Name)
			if entry.Stat.IsDir() {
				if err := walk(childRemote, childLocal); err != nil {
					return err
				}
				continue
			}
			jobs = append(jobs, job{source: childRemote, dest: childLocal})
		}
		return nil
	}
	if err := walk(source, dest); err != nil {
		return nil, fmt.Errorf("list %s: %w", source, err)
	}
	return jobs, nil
}

// listOn lists one remote directory on an already-open sync session. The
// listing ends with a DONE record shaped like an empty entry.
func listOn(conn *transport.Conn, remote string) ([]protocol.DirEntry, error) {
	if err := protocol.WriteSyncFrame(conn, protocol.SyncList, []byte(remote)); err != nil {
		return nil, err
	}

	var entries []protocol.DirEntry
	for {
		id, err := protocol.ReadSyncID(conn)
		if err != nil {
			return nil, err
		}
		switch id {
		case protocol.SyncDent:
			entry, err := protocol.ReadDirEntry(conn)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		case protocol.SyncDone:
			// the terminator carries an empty dent record
			if _, err := protocol.ReadDirEntry(conn); err != nil {
				return nil, err
			}
			return entries, nil
		default:
			return nil, fmt.Errorf("%w: %s in directory listing", protocol.ErrUnexpectedCommand, id)
		}
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, transport.ErrCancelled) || errors.Is(err, context.Canceled)
}
