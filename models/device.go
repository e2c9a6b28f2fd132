// SPDX-License-Identifier: Apache-2.0

package models

// DeviceState describes the connection state a device reports in the
// server's enumeration output.
type DeviceState string

const (
	// StateReady means the device is connected, authorized and usable.
	StateReady DeviceState = "device"

	// StateOffline means the device is known to the server but not
	// currently responding.
	StateOffline DeviceState = "offline"

	// StateUnauthorized means the device is connected but has not accepted
	// this host's authorization key yet.
	StateUnauthorized DeviceState = "unauthorized"

	// StateUnknown covers every state string the server may emit that this
	// client does not recognize.
	StateUnknown DeviceState = "unknown"
)

// AddressKind distinguishes locally attached devices from devices reached
// over the network.
type AddressKind string

const (
	// AddressUSB is a device attached over a local serial transport.
	AddressUSB AddressKind = "usb"

	// AddressNetwork is a device reached via a host:port address.
	AddressNetwork AddressKind = "network"
)

// Device is one entry of the server's device enumeration.
//
// A Device is created fresh on every enumeration response and is never
// cached across invocations; the Serial is unique among the devices
// connected at the moment of the query.
type Device struct {
	// Serial is the device identifier reported by the server.
	Serial string

	// State is the reported connection state.
	State DeviceState

	// Model is the device model string, when the server includes it.
	Model string

	// Product is the product name, when the server includes it.
	Product string

	// DeviceName is the hardware device name, when the server includes it.
	DeviceName string

	// TransportID is the numeric transport handle assigned by the server.
	TransportID string

	// Address tells whether the device is local (usb) or networked.
	Address AddressKind
}

// Ready reports whether the device is in a state that accepts transport,
// transfer and shell requests.
func (d Device) Ready() bool {
	return d.State == StateReady
}

// ParseDeviceState maps a state string from the enumeration output to a
// DeviceState, falling back to StateUnknown for unrecognized values.
func ParseDeviceState(s string) DeviceState {
	switch s {
	case "device":
		return StateReady
	case "offline":
		return StateOffline
	case "unauthorized":
		return StateUnauthorized
	default:
		return StateUnknown
	}
}
