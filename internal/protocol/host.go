// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"strconv"
)

// Host service request strings understood by the background server. Device
// and shell requests are built with the helper functions below.
const (
	HostVersion = "host:version"
	HostDevices = "host:devices-l"
	HostKill    = "host:kill"
	SyncService = "sync:"
)

// TransportRequest builds the device-transport-selection request that must
// precede transfer and shell sub-requests. An empty serial selects any
// device, matching the server's "transport-any" behavior.
func TransportRequest(serial string) string {
	if serial == "" {
		return "host:transport-any"
	}
	return "host:transport:" + serial
}

// ShellRequest builds the shell service request. An empty command requests
// an interactive session.
func ShellRequest(command string) string {
	return "shell:" + command
}

// FormatHostRequest frames a host request string with its 4-hex-digit length
// prefix, the framing every smart-protocol request uses.
func FormatHostRequest(req string) []byte {
	return []byte(fmt.Sprintf("%04x%s", len(req), req))
}

// ParseHexLength parses the 4-hex-digit length prefix of a smart-protocol
// response block.
func ParseHexLength(b []byte) (int, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: hex length prefix needs 4 bytes, have %d", ErrTruncatedFrame, len(b))
	}
	n, err := strconv.ParseUint(string(b), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse hex length %q: %w", b, err)
	}
	return int(n), nil
}

// Smart-protocol status words.
var (
	StatusOkay = []byte("OKAY")
	StatusFail = []byte("FAIL")
)
