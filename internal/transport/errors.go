// SPDX-License-Identifier: Apache-2.0

package transport

import "errors"

// Sentinel errors returned by connection operations. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrRefused is returned when the server is not listening on the
	// requested address.
	ErrRefused = errors.New("connection refused")

	// ErrTimeout is returned when establishing the connection or a frame
	// exchange exceeds its deadline.
	ErrTimeout = errors.New("connection timed out")

	// ErrBrokenStream is returned when the stream is closed or reset in the
	// middle of an exchange.
	ErrBrokenStream = errors.New("broken stream")

	// ErrCancelled is returned when the operation's context is cancelled;
	// the connection is closed promptly so pending reads and writes fail
	// rather than hang.
	ErrCancelled = errors.New("operation cancelled")

	// ErrRequestFailed is returned when the server answers a request with
	// FAIL; the wrapped message carries the server's reason.
	ErrRequestFailed = errors.New("request failed")
)
