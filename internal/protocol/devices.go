// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"strings"

	"github.com/adbx/adbx/models"
)

// ParseDeviceList parses the newline-delimited records of a "devices-l"
// response into Device entities.
//
// Each record is a serial, a state word, then optional key:value fields:
//
//	emulator-5554    device product:sdk_gphone model:Pixel_7 device:emu64a transport_id:1
//	192.168.1.9:5555 offline transport_id:2
//	0A241FDD4003EY   unauthorized usb:1-4 transport_id:3
//
// Offline and unauthorized devices are kept in the result; a record too
// short to carry a serial and state is dropped rather than failing the
// whole enumeration.
func ParseDeviceList(raw string) []models.Device {
	var devices []models.Device
	for _, line := range strings.Split(raw, "\n") {
		if d, ok := parseDeviceLine(line); ok {
			devices = append(devices, d)
		}
	}
	return devices
}

func parseDeviceLine(line string) (models.Device, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return models.Device{}, false
	}

	d := models.Device{
		Serial:  fields[0],
		State:   models.ParseDeviceState(fields[1]),
		Address: addressKind(fields[0]),
	}

	for _, f := range fields[2:] {
		key, value, ok := strings.Cut(f, ":")
		if !ok {
			continue
		}
		switch key {
		case "product":
			d.Product = value
		case "model":
			d.Model = value
		case "device":
			d.DeviceName = value
		case "transport_id":
			d.TransportID = value
		}
	}
	return d, true
}

// addressKind classifies the serial: network devices connect under a
// host:port serial, local serial transports do not contain a colon.
func addressKind(serial string) models.AddressKind {
	if strings.Contains(serial, ":") {
		return models.AddressNetwork
	}
	return models.AddressUSB
}
