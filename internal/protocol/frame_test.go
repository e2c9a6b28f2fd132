// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── EncodeFrame / DecodeFrame ────────────────────────────────────────────────

func TestFrame_RoundTrip(t *testing.T) {
	frames := []Frame{
		{Command: CmdConnect, Arg0: 0x01000000, Arg1: 4096, Payload: []byte("host::features=cmd")},
		{Command: CmdOpen, Arg0: 1, Arg1: 0, Payload: []byte("sync:\x00")},
		{Command: CmdWrite, Arg0: 1, Arg1: 2, Payload: []byte{0x00, 0xff, 0x10, 0x7f}},
		{Command: CmdOkay, Arg0: 7, Arg1: 9},
		{Command: CmdClose, Arg0: 1, Arg1: 2},
	}

	for _, f := range frames {
		got, err := DecodeFrame(EncodeFrame(f))
		require.NoError(t, err, "command %s", f.Command)
		assert.Equal(t, f.Command, got.Command)
		assert.Equal(t, f.Arg0, got.Arg0)
		assert.Equal(t, f.Arg1, got.Arg1)
		if len(f.Payload) == 0 {
			assert.Empty(t, got.Payload)
		} else {
			assert.Equal(t, f.Payload, got.Payload)
		}
	}
}

// TestDecodeFrame_CorruptionDetection flips every single bit of the payload
// in turn; each flip must surface as a checksum mismatch, never as a silent
// misparse.
func TestDecodeFrame_CorruptionDetection(t *testing.T) {
	f := Frame{Command: CmdWrite, Arg0: 1, Arg1: 1, Payload: []byte("payload under test")}
	encoded := EncodeFrame(f)

	for byteIdx := HeaderSize; byteIdx < len(encoded); byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := make([]byte, len(encoded))
			copy(corrupted, encoded)
			corrupted[byteIdx] ^= 1 << bit

			_, err := DecodeFrame(corrupted)
			assert.ErrorIs(t, err, ErrChecksumMismatch,
				"byte %d bit %d must be detected", byteIdx, bit)
		}
	}
}

func TestDecodeFrame_BadMagic(t *testing.T) {
	encoded := EncodeFrame(Frame{Command: CmdOkay, Arg0: 1, Arg1: 2})
	// corrupt one bit of the magic word
	encoded[20] ^= 0x01

	_, err := DecodeFrame(encoded)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeFrame_TruncatedHeader(t *testing.T) {
	encoded := EncodeFrame(Frame{Command: CmdOkay})

	_, err := DecodeFrame(encoded[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestDecodeFrame_TruncatedPayload(t *testing.T) {
	encoded := EncodeFrame(Frame{Command: CmdWrite, Payload: []byte("0123456789")})

	_, err := DecodeFrame(encoded[:len(encoded)-3])
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestDecodeFrame_OversizedPayload(t *testing.T) {
	encoded := EncodeFrame(Frame{Command: CmdWrite})
	binary.LittleEndian.PutUint32(encoded[12:16], MaxPayloadSize+1)

	_, err := DecodeFrame(encoded)
	assert.ErrorIs(t, err, ErrOversizedFrame)
}

func TestDecodeFrame_UnexpectedCommand(t *testing.T) {
	// a well-formed header whose command word is not part of the protocol
	bogus := Command(binary.LittleEndian.Uint32([]byte("XYZW")))
	encoded := EncodeFrame(Frame{Command: bogus})

	_, err := DecodeFrame(encoded)
	assert.ErrorIs(t, err, ErrUnexpectedCommand)
}

func TestChecksum_EmptyPayloadIsZero(t *testing.T) {
	assert.Zero(t, Checksum(nil))
	assert.Zero(t, Checksum([]byte{}))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "CNXN", CmdConnect.String())
	assert.Equal(t, "OPEN", CmdOpen.String())
	assert.Equal(t, "WRTE", CmdWrite.String())
	assert.Equal(t, "CLSE", CmdClose.String())
}
