// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/adbx/adbx/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShellServer accepts connections, performs the transport handshake and
// hands the shell request to handler.
func fakeShellServer(t *testing.T, handler func(conn net.Conn, request string)) transport.Dialer {
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
				if _, err := readHexRequest(conn); err != nil {
					return
				}
				if _, err := conn.Write([]byte("OKAY")); err != nil {
					return
				}
				req, err := readHexRequest(conn)
				if err != nil {
					return
				}
				if _, err := conn.Write([]byte("OKAY")); err != nil {
					return
				}
				handler(conn, req)
			}()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	return transport.Dialer{Host: "127.0.0.1", Port: port}
}

func readHexRequest(conn net.Conn) (string, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(conn, prefix); err != nil {
		return "", err
	}
	n, err := strconv.ParseUint(string(prefix), 16, 32)
	if err != nil {
		return "", err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		return "", err
	}
	return string(body), nil
}

// ── Run ──────────────────────────────────────────────────────────────────────

func TestRun_RelaysOutputUntilRemoteClose(t *testing.T) {
	d := fakeShellServer(t, func(conn net.Conn, request string) {
		assert.Equal(t, "shell:ls /sdcard", request)
		_, _ = conn.Write([]byte("Download\nDCIM\n"))
	})

	var out bytes.Buffer
	x := NewExecutor(d, nil)
	result, err := x.Run(context.Background(), "abc123", "ls /sdcard", Options{Output: &out})
	require.NoError(t, err)
	assert.Equal(t, "Download\nDCIM\n", out.String())
	assert.EqualValues(t, out.Len(), result.BytesRelayed)

	_, ok := result.ExitCode()
	assert.False(t, ok, "base shell service carries no exit status")
}

func TestRun_NilOutputDiscards(t *testing.T) {
	d := fakeShellServer(t, func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte("ignored"))
	})

	x := NewExecutor(d, nil)
	result, err := x.Run(context.Background(), "abc123", "true", Options{})
	require.NoError(t, err)
	assert.EqualValues(t, len("ignored"), result.BytesRelayed)
}

func TestRun_InteractiveRelaysInput(t *testing.T) {
	d := fakeShellServer(t, func(conn net.Conn, request string) {
		assert.Equal(t, "shell:", request)
		// echo the first line back, then close
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write(buf[:n])
	})

	var out bytes.Buffer
	x := NewExecutor(d, nil)
	_, err := x.Run(context.Background(), "abc123", "", Options{
		Input:  strings.NewReader("echo hi\n"),
		Output: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", out.String())
}

// blockedReader blocks every Read until unblock is closed, like stdin with
// nobody typing.
type blockedReader struct {
	unblock chan struct{}
}

func (r *blockedReader) Read([]byte) (int, error) {
	<-r.unblock
	return 0, io.EOF
}

func TestRun_ReturnsWhileInputStillBlocks(t *testing.T) {
	in := &blockedReader{unblock: make(chan struct{})}
	t.Cleanup(func() { close(in.unblock) })

	d := fakeShellServer(t, func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte("bye\n"))
	})

	var out bytes.Buffer
	x := NewExecutor(d, nil)

	done := make(chan error, 1)
	go func() {
		_, err := x.Run(context.Background(), "abc123", "", Options{
			Input:  in,
			Output: &out,
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, "bye\n", out.String())
	case <-time.After(2 * time.Second):
		t.Fatal("session must end on remote close even while input blocks")
	}
}

func TestRun_CancellationEndsSession(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	d := fakeShellServer(t, func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte("partial"))
		<-block
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var out bytes.Buffer
	x := NewExecutor(d, nil)

	done := make(chan error, 1)
	go func() {
		_, err := x.Run(ctx, "abc123", "logcat", Options{Output: &out})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, transport.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end promptly after cancellation")
	}
	assert.Equal(t, "partial", out.String())
}

func TestRun_DeviceSelectionFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := readHexRequest(conn); err != nil {
			return
		}
		reason := "device 'xyz' not found"
		_, _ = conn.Write([]byte("FAIL"))
		_, _ = fmt.Fprintf(conn, "%04x%s", len(reason), reason)
	}()

	d := transport.Dialer{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	x := NewExecutor(d, nil)
	_, err = x.Run(context.Background(), "xyz", "ls", Options{})
	assert.ErrorIs(t, err, transport.ErrRequestFailed)
}

// ── properties ───────────────────────────────────────────────────────────────

func TestGetProp_TrimsTrailingNewline(t *testing.T) {
	d := fakeShellServer(t, func(conn net.Conn, request string) {
		if request == "shell:getprop ro.product.model" {
			_, _ = conn.Write([]byte("Pixel 7\n"))
		}
	})

	x := NewExecutor(d, nil)
	value, err := x.GetProp(context.Background(), "abc123", "ro.product.model")
	require.NoError(t, err)
	assert.Equal(t, "Pixel 7", value)
}

func TestGetProps_FetchesAll(t *testing.T) {
	props := map[string]string{
		"ro.product.model":  "Pixel 7",
		"ro.product.vendor": "Google",
	}
	d := fakeShellServer(t, func(conn net.Conn, request string) {
		name := strings.TrimPrefix(request, "shell:getprop ")
		_, _ = conn.Write([]byte(props[name] + "\n"))
	})

	x := NewExecutor(d, nil)
	got, err := x.GetProps(context.Background(), "abc123",
		[]string{"ro.product.model", "ro.product.vendor"})
	require.NoError(t, err)
	assert.Equal(t, props, got)
}
