// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adbx/adbx/internal/progress"
	"github.com/adbx/adbx/internal/protocol"
	"github.com/adbx/adbx/models"
)

// partialSuffix marks a staging file holding incomplete pulled content. The
// final destination path only ever holds complete files; an interrupted pull
// leaves its staging file in place for inspection.
const partialSuffix = ".partial"

// pullFile retrieves one remote file onto the local file system on a
// dedicated connection. Every failure is captured in the outcome, not
// returned.
func (e *Engine) pullFile(ctx context.Context, serial, source, dest string) models.TransferOutcome {
	outcome := models.TransferOutcome{Source: source, Dest: dest, Status: models.TransferFailed}

	conn, err := e.openSync(ctx, serial)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	defer conn.Close()

	stat, err := statOn(conn, source)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if !stat.Exists() {
		outcome.Err = fmt.Errorf("%w: %s", ErrRemoteMissing, source)
		return outcome
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		outcome.Err = fmt.Errorf("create destination directory: %w", err)
		return outcome
	}

	staging := dest + partialSuffix
	file, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		outcome.Err = fmt.Errorf("create staging file: %w", err)
		return outcome
	}

	if err := protocol.WriteSyncFrame(conn, protocol.SyncRecv, []byte(source)); err != nil {
		file.Close()
		outcome.Err = err
		return outcome
	}

	sink := e.sinks()
	sink.Start(stat.Size)
	defer sink.Finish()

	received, err := receiveChunks(conn, file, sink)
	outcome.Bytes = received
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close staging file: %w", cerr)
	}
	if err != nil {
		// the staging file stays behind, marked incomplete by its suffix
		outcome.Err = err
		return outcome
	}

	if err := finalize(staging, dest, stat); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Status = models.TransferSucceeded
	return outcome
}

// receiveChunks drains DATA sub-frames into w until the stream's DONE or
// FAIL record. DONE's second header word is not a payload length, so frames
// are read header-first.
func receiveChunks(r io.Reader, w io.Writer, sink progress.Sink) (int64, error) {
	var received int64
	for {
		id, length, err := protocol.ReadSyncHeader(r)
		if err != nil {
			return received, err
		}
		switch id {
		case protocol.SyncData:
			if _, err := io.CopyN(w, r, int64(length)); err != nil {
				return received, fmt.Errorf("copy chunk: %w", err)
			}
			received += int64(length)
			sink.Update(received)
		case protocol.SyncDone:
			return received, nil
		case protocol.SyncFail:
			if length > protocol.SyncMaxChunk {
				return received, fmt.Errorf("%w: oversized reason", ErrRemoteRejected)
			}
			reason := make([]byte, length)
			if _, err := io.ReadFull(r, reason); err != nil {
				return received, fmt.Errorf("%w: reason unreadable", ErrRemoteRejected)
			}
			return received, fmt.Errorf("%w: %s", ErrRemoteRejected, reason)
		default:
			return received, fmt.Errorf("%w: %s in pull stream", protocol.ErrUnexpectedCommand, id)
		}
	}
}

// finalize applies the remote metadata to the completed staging file and
// renames it into place.
func finalize(staging, dest string, stat models.FileStat) error {
	if perm := stat.Mode & fs.ModePerm; perm != 0 {
		if err := os.Chmod(staging, perm); err != nil {
			return fmt.Errorf("apply mode: %w", err)
		}
	}
	if !stat.ModTime.IsZero() {
		if err := os.Chtimes(staging, stat.ModTime, stat.ModTime); err != nil {
			return fmt.Errorf("apply mtime: %w", err)
		}
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
