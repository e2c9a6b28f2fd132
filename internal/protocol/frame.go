// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is the 4-byte ASCII command tag of a frame, stored as its
// little-endian numeric value.
type Command uint32

// Frame command words.
const (
	CmdConnect Command = 0x4e584e43 // CNXN
	CmdOpen    Command = 0x4e45504f // OPEN
	CmdOkay    Command = 0x59414b4f // OKAY
	CmdWrite   Command = 0x45545257 // WRTE
	CmdClose   Command = 0x45534c43 // CLSE
	CmdAuth    Command = 0x48545541 // AUTH
	CmdSync    Command = 0x434e5953 // SYNC
)

// HeaderSize is the fixed size of an encoded frame header.
const HeaderSize = 24

// MaxPayloadSize bounds a frame's declared payload length. Readers reject
// headers declaring more before allocating anything, so a corrupt or hostile
// length word cannot force a multi-gigabyte allocation.
const MaxPayloadSize = 1024 * 1024

// String renders the command as its ASCII tag.
func (c Command) String() string {
	b := [4]byte{byte(c), byte(c >> 8), byte(c >> 16), byte(c >> 24)}
	return string(b[:])
}

func (c Command) known() bool {
	switch c {
	case CmdConnect, CmdOpen, CmdOkay, CmdWrite, CmdClose, CmdAuth, CmdSync:
		return true
	}
	return false
}

// Frame is one complete protocol message: command tag, two 32-bit arguments
// and a payload. Frames are ephemeral; they exist only for the duration of
// one read or write.
type Frame struct {
	Command Command
	Arg0    uint32
	Arg1    uint32
	Payload []byte
}

// Checksum computes the frame payload checksum: the unsigned sum of all
// payload bytes.
func Checksum(payload []byte) uint32 {
	var sum uint32
	for _, b := range payload {
		sum += uint32(b)
	}
	return sum
}

// EncodeFrame serializes a frame into the 24-byte header followed by the
// payload. The magic word is the bitwise complement of the command word.
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Command))
	binary.LittleEndian.PutUint32(buf[4:8], f.Arg0)
	binary.LittleEndian.PutUint32(buf[8:12], f.Arg1)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(f.Payload)))
	binary.LittleEndian.PutUint32(buf[16:20], Checksum(f.Payload))
	binary.LittleEndian.PutUint32(buf[20:24], ^uint32(f.Command))
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// DecodeFrame parses one frame out of data.
//
// It fails with ErrTruncatedFrame when fewer bytes than the header declares
// are available, ErrBadMagic when the magic word is not the complement of
// the command word, and ErrChecksumMismatch when the payload checksum does
// not match the header.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: have %d of %d header bytes", ErrTruncatedFrame, len(data), HeaderSize)
	}

	cmd := Command(binary.LittleEndian.Uint32(data[0:4]))
	arg0 := binary.LittleEndian.Uint32(data[4:8])
	arg1 := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	sum := binary.LittleEndian.Uint32(data[16:20])
	magic := binary.LittleEndian.Uint32(data[20:24])

	if magic != ^uint32(cmd) {
		return Frame{}, fmt.Errorf("%w: command %q", ErrBadMagic, cmd.String())
	}
	if !cmd.known() {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnexpectedCommand, cmd.String())
	}
	if length > MaxPayloadSize {
		return Frame{}, fmt.Errorf("%w: declared %d payload bytes", ErrOversizedFrame, length)
	}
	if uint32(len(data)-HeaderSize) < length {
		return Frame{}, fmt.Errorf("%w: declared %d payload bytes, have %d", ErrTruncatedFrame, length, len(data)-HeaderSize)
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+int(length)])

	if got := Checksum(payload); got != sum {
		return Frame{}, fmt.Errorf("%w: declared %#x, computed %#x", ErrChecksumMismatch, sum, got)
	}

	return Frame{Command: cmd, Arg0: arg0, Arg1: arg1, Payload: payload}, nil
}
