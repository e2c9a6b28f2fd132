// SPDX-License-Identifier: Apache-2.0

// Package transport owns one stream-socket session with the background
// server. A Conn carries exactly one outstanding request/response exchange
// at a time: the protocol is strictly request/response per connection, so
// concurrency is achieved by opening more connections, never by
// interleaving writes on one socket.
package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/protocol"
)

// DefaultDialTimeout bounds connection establishment when the caller's
// context carries no earlier deadline.
const DefaultDialTimeout = 2 * time.Second

// Dialer opens connections to the background server.
type Dialer struct {
	// Host is the server host; "localhost" is normalized to 127.0.0.1.
	Host string

	// Port is the server's listening port.
	Port int

	// Timeout bounds connection establishment. Zero means
	// DefaultDialTimeout.
	Timeout time.Duration

	// Log receives connection diagnostics; nil means no logging.
	Log *logger.Logger
}

// Addr returns the dial address in host:port form.
func (d Dialer) Addr() string {
	host := d.Host
	if host == "" || host == "localhost" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(d.Port))
}

// Dial opens a connection to the server. The returned Conn is bound to ctx:
// cancelling ctx closes the socket so pending reads and writes fail with
// ErrCancelled instead of hanging.
//
// Fails with ErrRefused when nothing listens on the address and ErrTimeout
// when establishment exceeds the deadline.
func (d Dialer) Dial(ctx context.Context) (*Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	log := d.Log
	if log == nil {
		log = logger.Nop()
	}

	nd := net.Dialer{Timeout: timeout}
	raw, err := nd.DialContext(ctx, "tcp", d.Addr())
	if err != nil {
		return nil, dialError(ctx, d.Addr(), err)
	}
	log.Debug().Str("addr", d.Addr()).Msg("connection established")

	c := &Conn{conn: raw, log: log, watchDone: make(chan struct{})}
	go c.watch(ctx)
	return c, nil
}

func dialError(ctx context.Context, addr string, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%w: dial %s", ErrCancelled, addr)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %s", ErrRefused, addr)
	case isTimeout(err):
		return fmt.Errorf("%w: dial %s", ErrTimeout, addr)
	default:
		return fmt.Errorf("dial %s: %w", addr, err)
	}
}

// Conn is one stream-socket session. It exclusively owns its socket; no two
// callers may interleave writes without external serialization.
type Conn struct {
	conn net.Conn
	log  *logger.Logger

	cancelled atomic.Bool
	closeOnce sync.Once
	watchOnce sync.Once
	watchDone chan struct{}
	closeErr  error
}

// watch closes the socket as soon as ctx is cancelled, releasing any
// goroutine blocked in a read or write.
func (c *Conn) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.cancelled.Store(true)
		c.closeSocket()
	case <-c.watchDone:
	}
}

func (c *Conn) closeSocket() {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
}

// Close releases the socket. It is idempotent and safe on every exit path,
// including error paths; constructors and callers defer it unconditionally.
func (c *Conn) Close() error {
	c.watchOnce.Do(func() { close(c.watchDone) })
	c.closeSocket()
	return c.closeErr
}

// Read implements io.Reader over the session so sub-protocol codecs can
// consume the stream directly.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if err != nil {
		return n, c.mapErr(err)
	}
	return n, nil
}

// Write implements io.Writer, looping until every byte is written or a hard
// error occurs.
func (c *Conn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := c.conn.Write(p[written:])
		written += n
		if err != nil {
			return written, c.mapErr(err)
		}
	}
	return written, nil
}

// readFull loops over partial reads until buf is filled.
func (c *Conn) readFull(buf []byte) error {
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return c.mapErr(err)
	}
	return nil
}

// WriteFrame encodes and writes one complete protocol frame.
func (c *Conn) WriteFrame(f protocol.Frame) error {
	if _, err := c.Write(protocol.EncodeFrame(f)); err != nil {
		return fmt.Errorf("write frame %s: %w", f.Command, err)
	}
	return nil
}

// ReadFrame reads exactly one complete protocol frame, looping internally
// over the partial reads inherent to stream sockets.
func (c *Conn) ReadFrame() (protocol.Frame, error) {
	buf := make([]byte, protocol.HeaderSize)
	if err := c.readFull(buf); err != nil {
		return protocol.Frame{}, fmt.Errorf("read frame header: %w", err)
	}

	// The payload length word sits at offset 12; fetch the declared bytes
	// before handing the whole frame to the codec.
	length := binary.LittleEndian.Uint32(buf[12:16])
	if length > protocol.MaxPayloadSize {
		return protocol.Frame{}, fmt.Errorf("%w: declared %d payload bytes", protocol.ErrOversizedFrame, length)
	}
	if length > 0 {
		payload := make([]byte, length)
		if err := c.readFull(payload); err != nil {
			return protocol.Frame{}, fmt.Errorf("read frame payload: %w", err)
		}
		buf = append(buf, payload...)
	}

	return protocol.DecodeFrame(buf)
}

// SendRequest writes one hex-length-prefixed host request string.
func (c *Conn) SendRequest(req string) error {
	c.log.Debug().Str("request", req).Msg("sending request")
	if _, err := c.Write(protocol.FormatHostRequest(req)); err != nil {
		return fmt.Errorf("send request %q: %w", req, err)
	}
	return nil
}

// ReadStatus reads the server's 4-byte status word. OKAY yields nil; FAIL
// yields ErrRequestFailed wrapping the server's reason; anything else is an
// unexpected command.
func (c *Conn) ReadStatus() error {
	status := make([]byte, 4)
	if err := c.readFull(status); err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	switch {
	case bytes.Equal(status, protocol.StatusOkay):
		return nil
	case bytes.Equal(status, protocol.StatusFail):
		reason, err := c.ReadHexBlock()
		if err != nil {
			return fmt.Errorf("%w: reason unreadable: %v", ErrRequestFailed, err)
		}
		return fmt.Errorf("%w: %s", ErrRequestFailed, reason)
	default:
		return fmt.Errorf("%w: status %q", protocol.ErrUnexpectedCommand, status)
	}
}

// ReadHexBlock reads one 4-hex-digit length prefix and the block it
// declares.
func (c *Conn) ReadHexBlock() (string, error) {
	prefix := make([]byte, 4)
	if err := c.readFull(prefix); err != nil {
		return "", fmt.Errorf("read block length: %w", err)
	}
	length, err := protocol.ParseHexLength(prefix)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}

	body := make([]byte, length)
	if err := c.readFull(body); err != nil {
		return "", fmt.Errorf("read block body: %w", err)
	}
	return string(body), nil
}

// RoundTrip sends one request and checks the OKAY/FAIL status word, the
// exchange shape every host service starts with.
func (c *Conn) RoundTrip(req string) error {
	if err := c.SendRequest(req); err != nil {
		return err
	}
	return c.ReadStatus()
}

// mapErr translates socket errors into the package's sentinel taxonomy.
// A cancelled context wins over whatever error the closed socket produced.
func (c *Conn) mapErr(err error) error {
	switch {
	case c.cancelled.Load():
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", ErrBrokenStream, err)
	default:
		return err
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
