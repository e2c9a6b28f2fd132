// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the wire codec for the device-debugging host
// protocol: the fixed 24-byte binary frame header, the nested sync
// sub-protocol used for file transfer, the hex-length-prefixed host request
// format, and the parser for the server's device enumeration records.
//
// The package is pure encoding/decoding; it performs no I/O of its own
// beyond reading and writing the caller's streams.
package protocol
