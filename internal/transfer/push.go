// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/adbx/adbx/internal/progress"
	"github.com/adbx/adbx/internal/protocol"
	"github.com/adbx/adbx/internal/transport"
	"github.com/adbx/adbx/models"
)

// pushFile sends one local file to the device on a dedicated connection.
// Every failure is captured in the outcome, not returned.
func (e *Engine) pushFile(ctx context.Context, serial, source, dest string, skipUnchanged bool) models.TransferOutcome {
	outcome := models.TransferOutcome{Source: source, Dest: dest, Status: models.TransferFailed}

	file, err := os.Open(source)
	if err != nil {
		outcome.Err = fmt.Errorf("open %s: %w", source, err)
		return outcome
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		outcome.Err = fmt.Errorf("stat %s: %w", source, err)
		return outcome
	}

	conn, err := e.openSync(ctx, serial)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	defer conn.Close()

	if skipUnchanged {
		remote, err := statOn(conn, dest)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		if unchanged(info, remote) {
			e.log.Debug().Str("dest", dest).Msg("remote file up to date, skipping")
			outcome.Status = models.TransferSkipped
			return outcome
		}
	}

	header := protocol.SendPathHeader(dest, info.Mode())
	if err := protocol.WriteSyncFrame(conn, protocol.SyncSend, header); err != nil {
		outcome.Err = err
		return outcome
	}

	sink := e.sinks()
	sink.Start(info.Size())
	defer sink.Finish()

	sent, err := sendChunks(ctx, conn, file, sink)
	outcome.Bytes = sent
	if err != nil {
		// aborting without DONE makes the device discard the partial
		outcome.Err = err
		return outcome
	}

	mtime := uint32(info.ModTime().Unix())
	if err := protocol.WriteSyncUint32(conn, protocol.SyncDone, mtime); err != nil {
		outcome.Err = err
		return outcome
	}
	if err := readSyncResult(conn); err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Status = models.TransferSucceeded
	return outcome
}

// sendChunks streams the file as DATA sub-frames, checking for cancellation
// between chunks.
func sendChunks(ctx context.Context, w io.Writer, r io.Reader, sink progress.Sink) (int64, error) {
	buf := make([]byte, protocol.SyncMaxChunk)
	var sent int64
	for {
		if ctx.Err() != nil {
			return sent, fmt.Errorf("%w: push interrupted", transport.ErrCancelled)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if werr := protocol.WriteSyncFrame(w, protocol.SyncData, buf[:n]); werr != nil {
				return sent, werr
			}
			sent += int64(n)
			sink.Update(sent)
		}
		if err == io.EOF {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("read source: %w", err)
		}
	}
}

// readSyncResult consumes the OKAY or FAIL frame closing a SEND exchange.
func readSyncResult(r io.Reader) error {
	id, body, err := protocol.ReadSyncFrame(r)
	if err != nil {
		return err
	}
	switch id {
	case protocol.SyncOkay:
		return nil
	case protocol.SyncFail:
		return fmt.Errorf("%w: %s", ErrRemoteRejected, body)
	default:
		return fmt.Errorf("%w: %s closing transfer", protocol.ErrUnexpectedCommand, id)
	}
}

// unchanged applies the skip heuristic: the remote file is at least as large
// and at least as new as the local one. Wire mtimes have second precision,
// so the local time is truncated before comparing.
func unchanged(local os.FileInfo, remote models.FileStat) bool {
	if !remote.Exists() || remote.IsDir() {
		return false
	}
	return remote.Size >= local.Size() &&
		!remote.ModTime.Before(local.ModTime().Truncate(time.Second))
}
