// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── sync frames ──────────────────────────────────────────────────────────────

func TestSyncFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("/sdcard/Download/report.txt")
	require.NoError(t, WriteSyncFrame(&buf, SyncRecv, payload))

	id, body, err := ReadSyncFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, SyncRecv, id)
	assert.Equal(t, payload, body)
}

func TestSyncFrame_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSyncFrame(&buf, SyncQuit, nil))

	id, body, err := ReadSyncFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, SyncQuit, id)
	assert.Empty(t, body)
}

func TestSyncFrame_TruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSyncFrame(&buf, SyncData, []byte("0123456789")))
	cut := buf.Bytes()[:12] // header + partial body

	_, _, err := ReadSyncFrame(bytes.NewReader(cut))
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestSyncFrame_OversizedBody(t *testing.T) {
	// a header may declare up to 4 GiB; the reader must refuse before
	// allocating anything
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(SyncFail))
	binary.LittleEndian.PutUint32(hdr[4:8], 0xFFFF_FFF0)

	_, _, err := ReadSyncFrame(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, ErrOversizedFrame)
}

func TestWriteSyncUint32_DoneCarriesMtime(t *testing.T) {
	var buf bytes.Buffer
	mtime := uint32(1_700_000_000)
	require.NoError(t, WriteSyncUint32(&buf, SyncDone, mtime))

	id, length, err := ReadSyncHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, SyncDone, id)
	assert.Equal(t, mtime, length)
}

func TestReadSyncID(t *testing.T) {
	id, err := ReadSyncID(bytes.NewReader([]byte("STAT")))
	require.NoError(t, err)
	assert.Equal(t, SyncStat, id)

	_, err = ReadSyncID(bytes.NewReader([]byte("ST")))
	assert.Error(t, err)
}

func TestSyncID_String(t *testing.T) {
	assert.Equal(t, "STAT", SyncStat.String())
	assert.Equal(t, "SEND", SyncSend.String())
	assert.Equal(t, "DATA", SyncData.String())
	assert.Equal(t, "DONE", SyncDone.String())
	assert.Equal(t, "FAIL", SyncFail.String())
	assert.Equal(t, "DENT", SyncDent.String())
}

// ── stat replies ─────────────────────────────────────────────────────────────

func TestReadStatReply_RegularFile(t *testing.T) {
	body := make([]byte, 12)
	binary.LittleEndian.PutUint32(body[0:4], 0o100644)
	binary.LittleEndian.PutUint32(body[4:8], 2048)
	binary.LittleEndian.PutUint32(body[8:12], 1_700_000_000)

	stat, err := ReadStatReply(bytes.NewReader(body))
	require.NoError(t, err)
	assert.True(t, stat.Exists())
	assert.False(t, stat.IsDir())
	assert.Equal(t, fs.FileMode(0o644), stat.Mode.Perm())
	assert.Equal(t, int64(2048), stat.Size)
	assert.Equal(t, time.Unix(1_700_000_000, 0), stat.ModTime)
}

func TestReadStatReply_Directory(t *testing.T) {
	body := make([]byte, 12)
	binary.LittleEndian.PutUint32(body[0:4], 0o040755)
	binary.LittleEndian.PutUint32(body[8:12], 1)

	stat, err := ReadStatReply(bytes.NewReader(body))
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

// TestReadStatReply_MissingPath verifies the all-zero record convention for
// paths that do not exist on the remote side.
func TestReadStatReply_MissingPath(t *testing.T) {
	stat, err := ReadStatReply(bytes.NewReader(make([]byte, 12)))
	require.NoError(t, err)
	assert.False(t, stat.Exists())
}

func TestReadStatReply_Truncated(t *testing.T) {
	_, err := ReadStatReply(bytes.NewReader(make([]byte, 7)))
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

// ── directory entries ────────────────────────────────────────────────────────

func TestReadDirEntry(t *testing.T) {
	name := "photo.jpg"
	body := make([]byte, 16)
	binary.LittleEndian.PutUint32(body[0:4], 0o100600)
	binary.LittleEndian.PutUint32(body[4:8], 512)
	binary.LittleEndian.PutUint32(body[8:12], 1_650_000_000)
	binary.LittleEndian.PutUint32(body[12:16], uint32(len(name)))

	entry, err := ReadDirEntry(bytes.NewReader(append(body, name...)))
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", entry.Name)
	assert.Equal(t, int64(512), entry.Stat.Size)
	assert.False(t, entry.Stat.IsDir())
}

func TestReadDirEntry_TruncatedName(t *testing.T) {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint32(body[12:16], 20) // declares 20 name bytes
	data := append(body, "short"...)

	_, err := ReadDirEntry(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestReadDirEntry_OversizedName(t *testing.T) {
	body := make([]byte, 16)
	binary.LittleEndian.PutUint32(body[12:16], 0xFFFF_FFF0)

	_, err := ReadDirEntry(bytes.NewReader(body))
	assert.ErrorIs(t, err, ErrOversizedFrame)
}

// ── SEND path header ─────────────────────────────────────────────────────────

func TestSendPathHeader(t *testing.T) {
	hdr := SendPathHeader("/data/local/tmp/bin", 0o755)
	assert.Equal(t, "/data/local/tmp/bin,33261", string(hdr)) // 0o100755
}

func TestSendPathHeader_Directory(t *testing.T) {
	hdr := SendPathHeader("/sdcard/dir", fs.ModeDir|0o755)
	assert.Equal(t, "/sdcard/dir,16877", string(hdr)) // 0o040755
}
