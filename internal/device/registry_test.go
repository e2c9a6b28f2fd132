// SPDX-License-Identifier: Apache-2.0

package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adbx/adbx/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHostServer listens on a loopback port and runs handler on every
// accepted connection, so tests can exercise flows that open several
// connections.
func fakeHostServer(t *testing.T, handler func(net.Conn)) transport.Dialer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handler(conn)
			}()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	return transport.Dialer{Host: "127.0.0.1", Port: port}
}

// readRequest consumes one hex-length-prefixed request string.
func readRequest(r *bufio.Reader) (string, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return "", err
	}
	n, err := strconv.ParseUint(string(prefix), 16, 32)
	if err != nil {
		return "", err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return "", err
	}
	return string(body), nil
}

func writeHexBlock(conn net.Conn, body string) {
	_, _ = fmt.Fprintf(conn, "%04x%s", len(body), body)
}

// ── List ─────────────────────────────────────────────────────────────────────

func TestRegistryList_ParsesDevices(t *testing.T) {
	listing := "abc123\tdevice product:panther model:Pixel_7 device:panther transport_id:1\n" +
		"def456\tunauthorized transport_id:2\n"

	d := fakeHostServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		req, err := readRequest(r)
		if err != nil || req != "host:devices-l" {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))
		writeHexBlock(conn, listing)
	})

	reg := NewRegistry(d, RetryPolicy{}, nil)
	devices, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "abc123", devices[0].Serial)
	assert.True(t, devices[0].Ready())
	assert.Equal(t, "Pixel_7", devices[0].Model)
	assert.False(t, devices[1].Ready())
}

func TestRegistryList_RetriesEmptyList(t *testing.T) {
	var calls atomic.Int32

	d := fakeHostServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		if _, err := readRequest(r); err != nil {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))
		if calls.Add(1) == 1 {
			writeHexBlock(conn, "")
			return
		}
		writeHexBlock(conn, "abc123\tdevice\n")
	})

	reg := NewRegistry(d, RetryPolicy{Attempts: 2, Delay: 10 * time.Millisecond}, nil)
	devices, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "abc123", devices[0].Serial)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegistryList_EmptyAfterRetriesIsNotAnError(t *testing.T) {
	d := fakeHostServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		if _, err := readRequest(r); err != nil {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))
		writeHexBlock(conn, "")
	})

	reg := NewRegistry(d, RetryPolicy{Attempts: 1, Delay: time.Millisecond}, nil)
	devices, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestRegistryList_ServerFailure(t *testing.T) {
	d := fakeHostServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		if _, err := readRequest(r); err != nil {
			return
		}
		_, _ = conn.Write([]byte("FAIL"))
		writeHexBlock(conn, "internal error")
	})

	reg := NewRegistry(d, RetryPolicy{}, nil)
	_, err := reg.List(context.Background())
	assert.ErrorIs(t, err, transport.ErrRequestFailed)
	assert.Contains(t, err.Error(), "internal error")
}

// ── Properties ───────────────────────────────────────────────────────────────

func TestRegistryProperties_FetchesConcurrently(t *testing.T) {
	props := map[string]string{
		"ro.product.model":         "Pixel 7",
		"ro.build.version.release": "16",
	}

	d := fakeHostServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		req, err := readRequest(r)
		if err != nil || req != "host:transport:abc123" {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))

		req, err = readRequest(r)
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))

		name := strings.TrimPrefix(req, "shell:getprop ")
		_, _ = conn.Write([]byte(props[name] + "\n"))
	})

	reg := NewRegistry(d, RetryPolicy{}, nil)
	got, err := reg.Properties(context.Background(), "abc123",
		[]string{"ro.product.model", "ro.build.version.release"})
	require.NoError(t, err)
	assert.Equal(t, props, got)
}

func TestRegistryProperties_MissingPropertyIsEmpty(t *testing.T) {
	d := fakeHostServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		if _, err := readRequest(r); err != nil {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))
		if _, err := readRequest(r); err != nil {
			return
		}
		_, _ = conn.Write([]byte("OKAY"))
		_, _ = conn.Write([]byte("\n"))
	})

	reg := NewRegistry(d, RetryPolicy{}, nil)
	got, err := reg.Properties(context.Background(), "abc123", []string{"ro.no.such.prop"})
	require.NoError(t, err)
	assert.Equal(t, "", got["ro.no.such.prop"])
}
