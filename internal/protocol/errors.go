// SPDX-License-Identifier: Apache-2.0

package protocol

import "errors"

// Sentinel errors returned by the codec. Callers should use [errors.Is] to
// match against these values.
var (
	// ErrBadMagic is returned when a frame header's magic word is not the
	// bitwise complement of its command word.
	ErrBadMagic = errors.New("bad magic")

	// ErrChecksumMismatch is returned when the computed payload checksum
	// disagrees with the checksum declared in the frame header.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrTruncatedFrame is returned when fewer bytes than the header
	// declares are available.
	ErrTruncatedFrame = errors.New("truncated frame")

	// ErrUnexpectedCommand is returned when a frame or sync sub-frame
	// carries a command the current exchange cannot accept.
	ErrUnexpectedCommand = errors.New("unexpected command")

	// ErrOversizedFrame is returned when a header declares a length beyond
	// what the protocol allows. The declared bytes are never allocated.
	ErrOversizedFrame = errors.New("oversized frame")
)
