// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/adbx/adbx/models"
)

// SyncID is the 4-byte ASCII id of a sync sub-protocol frame, stored as its
// little-endian numeric value. Sync frames are carried as the payload of an
// opened transfer stream; the sub-protocol is binary with little-endian
// lengths, unlike the hex-length host request format.
type SyncID uint32

// Sync sub-protocol ids.
const (
	SyncStat SyncID = 0x54415453 // STAT
	SyncList SyncID = 0x5453494c // LIST
	SyncDent SyncID = 0x544e4544 // DENT
	SyncSend SyncID = 0x444e4553 // SEND
	SyncRecv SyncID = 0x56434552 // RECV
	SyncData SyncID = 0x41544144 // DATA
	SyncDone SyncID = 0x454e4f44 // DONE
	SyncFail SyncID = 0x4c494146 // FAIL
	SyncOkay SyncID = 0x59414b4f // OKAY
	SyncQuit SyncID = 0x54495551 // QUIT
)

// SyncMaxChunk is the largest payload a single DATA sub-frame may carry.
const SyncMaxChunk = 64 * 1024

// String renders the id as its ASCII tag.
func (id SyncID) String() string {
	b := [4]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)}
	return string(b[:])
}

// WriteSyncFrame writes one sub-frame: 4-byte id, 32-bit little-endian
// length, then the payload.
func WriteSyncFrame(w io.Writer, id SyncID, payload []byte) error {
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(id))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write sync header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write sync payload: %w", err)
	}
	return nil
}

// WriteSyncUint32 writes a sub-frame whose body is a single little-endian
// 32-bit value instead of a length-prefixed payload. DONE uses this shape to
// carry the file modification time.
func WriteSyncUint32(w io.Writer, id SyncID, v uint32) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(id))
	binary.LittleEndian.PutUint32(buf[4:8], v)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write sync frame: %w", err)
	}
	return nil
}

// ReadSyncID reads just the 4-byte id of the next sub-frame. STAT and DENT
// replies use this: their ids are followed by a fixed record, not a
// length-prefixed payload.
func ReadSyncID(r io.Reader) (SyncID, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("read sync id: %w", err)
	}
	return SyncID(binary.LittleEndian.Uint32(buf)), nil
}

// ReadSyncHeader reads the 8-byte id+length header of the next sub-frame.
func ReadSyncHeader(r io.Reader) (SyncID, uint32, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, 0, fmt.Errorf("read sync header: %w", err)
	}
	id := SyncID(binary.LittleEndian.Uint32(hdr[0:4]))
	length := binary.LittleEndian.Uint32(hdr[4:8])
	return id, length, nil
}

// ReadSyncFrame reads the next sub-frame header and its full body. Bodies
// are bounded by SyncMaxChunk; a header declaring more is rejected before
// anything is allocated.
func ReadSyncFrame(r io.Reader) (SyncID, []byte, error) {
	id, length, err := ReadSyncHeader(r)
	if err != nil {
		return 0, nil, err
	}
	if length > SyncMaxChunk {
		return 0, nil, fmt.Errorf("%w: sync %s body of %d bytes", ErrOversizedFrame, id.String(), length)
	}
	if length == 0 {
		return id, nil, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("%w: sync %s body", ErrTruncatedFrame, id.String())
	}
	return id, body, nil
}

// statReplySize is the fixed body of a STAT reply: id already consumed plus
// mode, size and mtime words.
const statReplySize = 12

// ReadStatReply reads the body of a STAT response (mode, size, mtime, all
// little-endian 32-bit) that follows a STAT header.
//
// A stat for a missing remote path answers with an all-zero record; callers
// detect that via FileStat.Exists.
func ReadStatReply(r io.Reader) (models.FileStat, error) {
	body := make([]byte, statReplySize)
	if _, err := io.ReadFull(r, body); err != nil {
		return models.FileStat{}, fmt.Errorf("%w: stat reply", ErrTruncatedFrame)
	}
	return decodeStat(body), nil
}

func decodeStat(body []byte) models.FileStat {
	mode := binary.LittleEndian.Uint32(body[0:4])
	size := binary.LittleEndian.Uint32(body[4:8])
	mtime := binary.LittleEndian.Uint32(body[8:12])

	stat := models.FileStat{
		Mode: fileModeFromWire(mode),
		Size: int64(size),
	}
	if mtime != 0 {
		stat.ModTime = time.Unix(int64(mtime), 0)
	}
	return stat
}

// DirEntry is one DENT record of a LIST response: the stat of a directory
// member plus its name relative to the listed directory.
type DirEntry struct {
	Name string
	Stat models.FileStat
}

// ReadDirEntry reads the body of a DENT record (mode, size, mtime, name
// length, name) that follows a DENT header.
func ReadDirEntry(r io.Reader) (DirEntry, error) {
	body := make([]byte, 16)
	if _, err := io.ReadFull(r, body); err != nil {
		return DirEntry{}, fmt.Errorf("%w: dent record", ErrTruncatedFrame)
	}
	nameLen := binary.LittleEndian.Uint32(body[12:16])
	if nameLen > SyncMaxChunk {
		return DirEntry{}, fmt.Errorf("%w: dent name of %d bytes", ErrOversizedFrame, nameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return DirEntry{}, fmt.Errorf("%w: dent name", ErrTruncatedFrame)
	}
	return DirEntry{Name: string(name), Stat: decodeStat(body[0:12])}, nil
}

// SendPathHeader writes the "path,mode" body used by SEND requests.
func SendPathHeader(path string, mode fs.FileMode) []byte {
	return []byte(fmt.Sprintf("%s,%d", path, wireModeFromFileMode(mode)))
}

// File type bits of the wire stat mode word (POSIX st_mode layout).
const (
	wireTypeMask uint32 = 0o170000
	wireTypeLink uint32 = 0o120000
	wireTypeReg  uint32 = 0o100000
	wireTypeDir  uint32 = 0o040000
)

func fileModeFromWire(mode uint32) fs.FileMode {
	fm := fs.FileMode(mode & 0o777)
	switch mode & wireTypeMask {
	case wireTypeDir:
		fm |= fs.ModeDir
	case wireTypeLink:
		fm |= fs.ModeSymlink
	}
	return fm
}

func wireModeFromFileMode(mode fs.FileMode) uint32 {
	wire := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		wire |= wireTypeDir
	case mode&fs.ModeSymlink != 0:
		wire |= wireTypeLink
	default:
		wire |= wireTypeReg
	}
	return wire
}
