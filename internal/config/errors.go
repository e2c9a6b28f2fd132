// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

// Validation errors returned when required configuration groups are
// incomplete or invalid.
var (
	// ErrInvalidServerConfigs indicates invalid server address settings
	// (for example, a port outside the valid TCP range).
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidTransferConfigs indicates invalid transfer settings
	// (for example, a non-positive worker count).
	ErrInvalidTransferConfigs = errors.New("invalid transfer configuration")
)
