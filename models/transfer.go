// SPDX-License-Identifier: Apache-2.0

package models

import (
	"io/fs"
	"time"
)

// TransferDirection tells which side of the connection receives the file.
type TransferDirection string

const (
	// ToDevice pushes local files to the device.
	ToDevice TransferDirection = "push"

	// FromDevice pulls remote files to the local file system.
	FromDevice TransferDirection = "pull"
)

// TransferRequest describes one push or pull operation. It is owned by the
// caller for the duration of that operation.
type TransferRequest struct {
	// Serial selects the target device.
	Serial string

	// Source is the path read from: local for push, remote for pull.
	Source string

	// Dest is the path written to: remote for push, local for pull.
	Dest string

	// Direction is ToDevice or FromDevice.
	Direction TransferDirection

	// Recursive transfers a whole directory tree instead of one file.
	Recursive bool

	// SkipUnchanged skips files whose remote size and modification time
	// already cover the local file. This is a heuristic match by
	// size+mtime, not a content identity check.
	SkipUnchanged bool
}

// FileStat is the file metadata unit compared for skip-if-unchanged
// decisions and applied to pulled files.
type FileStat struct {
	// Mode holds the permission and file-type bits.
	Mode fs.FileMode

	// Size is the file length in bytes.
	Size int64

	// ModTime is the file's last modification time, truncated to seconds
	// by the wire format.
	ModTime time.Time
}

// IsDir reports whether the stat describes a directory.
func (s FileStat) IsDir() bool { return s.Mode.IsDir() }

// Exists reports whether the remote path exists: the sync protocol answers
// a stat for a missing path with an all-zero record.
func (s FileStat) Exists() bool {
	return s.Mode != 0 || s.Size != 0 || !s.ModTime.IsZero()
}

// TransferStatus is the per-path verdict inside a TransferOutcome.
type TransferStatus string

const (
	// TransferSucceeded means the file was transferred completely.
	TransferSucceeded TransferStatus = "succeeded"

	// TransferFailed means this file failed; Err carries the reason.
	TransferFailed TransferStatus = "failed"

	// TransferSkipped means the skip-if-unchanged heuristic matched and no
	// payload was sent.
	TransferSkipped TransferStatus = "skipped"
)

// TransferOutcome is the result for a single path within a transfer
// operation. A batch operation produces an ordered collection of these,
// never a single pass/fail verdict.
type TransferOutcome struct {
	// Source is the path the bytes were read from.
	Source string

	// Dest is the path the bytes were written to.
	Dest string

	// Status is the per-path verdict.
	Status TransferStatus

	// Bytes is the number of payload bytes moved for this path.
	Bytes int64

	// Err is the reason for a failed outcome, nil otherwise.
	Err error
}

// Failed returns the subset of outcomes that did not succeed or skip,
// preserving order.
func Failed(outcomes []TransferOutcome) []TransferOutcome {
	var failed []TransferOutcome
	for _, o := range outcomes {
		if o.Status == TransferFailed {
			failed = append(failed, o)
		}
	}
	return failed
}
