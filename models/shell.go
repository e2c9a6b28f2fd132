// SPDX-License-Identifier: Apache-2.0

package models

// ShellResult is what a finished shell session reports back.
//
// The base shell service multiplexes nothing: output arrives as one
// undifferentiated byte stream with no stdout/stderr separation and no exit
// status channel. ExitCode is therefore only recoverable when the remote
// protocol version appends a trailing status byte to the final frame; when
// it does not, callers must assume success. That is a documented limitation
// of the wire protocol, not something this client guesses around.
type ShellResult struct {
	// Command is the command line that was executed; empty means the
	// session was interactive.
	Command string

	// BytesRelayed counts the output bytes delivered to the caller.
	BytesRelayed int64

	exitCode    int
	hasExitCode bool
}

// NewShellResult builds a result without exit status information.
func NewShellResult(command string, bytesRelayed int64) ShellResult {
	return ShellResult{Command: command, BytesRelayed: bytesRelayed}
}

// WithExitCode returns a copy of the result carrying a recovered exit
// status byte.
func (r ShellResult) WithExitCode(code int) ShellResult {
	r.exitCode = code
	r.hasExitCode = true
	return r
}

// ExitCode returns the remote exit status and whether it was recoverable.
// When ok is false the protocol did not carry a status and success is
// assumed.
func (r ShellResult) ExitCode() (code int, ok bool) {
	return r.exitCode, r.hasExitCode
}
