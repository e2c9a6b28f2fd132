// SPDX-License-Identifier: Apache-2.0

package device

import "errors"

// Sentinel errors returned by enumeration and selection. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrDeviceNotFound is returned when no connected device matches the
	// supplied identifier.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrAmbiguousSelection is returned when more than one device matches;
	// the error message names every candidate.
	ErrAmbiguousSelection = errors.New("ambiguous device selection")

	// ErrNoDevices is returned when the server reports no connected
	// devices at all.
	ErrNoDevices = errors.New("no devices found")

	// ErrDeviceOffline is returned when the selected device is known to
	// the server but not responding.
	ErrDeviceOffline = errors.New("device is offline")

	// ErrDeviceUnauthorized is returned when the selected device has not
	// accepted this host's authorization key.
	ErrDeviceUnauthorized = errors.New("device is unauthorized")
)
