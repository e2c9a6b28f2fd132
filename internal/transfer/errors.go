// SPDX-License-Identifier: Apache-2.0

package transfer

import "errors"

// Sentinel errors for transfer-level failures. Wire-level failures surface
// as transport package sentinels instead.
var (
	// ErrRemoteMissing is returned when the remote source path of a pull
	// does not exist.
	ErrRemoteMissing = errors.New("remote path does not exist")

	// ErrIsDirectory is returned when the source is a directory and the
	// request did not ask for a recursive transfer.
	ErrIsDirectory = errors.New("source is a directory, recursive transfer required")

	// ErrRemoteRejected is returned when the device rejects a transfer;
	// the wrapped message carries the device's reason.
	ErrRemoteRejected = errors.New("device rejected transfer")
)
