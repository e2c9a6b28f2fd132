// SPDX-License-Identifier: Apache-2.0

package server

import "errors"

var (
	// ErrStartTimeout is returned when a spawned server never starts
	// answering before the poll attempts run out.
	ErrStartTimeout = errors.New("server did not start in time")

	// ErrStopFailed is returned when the server keeps answering after a
	// kill request.
	ErrStopFailed = errors.New("server did not stop")
)
