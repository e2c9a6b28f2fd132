// SPDX-License-Identifier: Apache-2.0

// Package device enumerates the devices known to the background server and
// resolves user-supplied identifiers to a single target device.
package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/internal/protocol"
	"github.com/adbx/adbx/internal/transport"
	"github.com/adbx/adbx/models"
)

// RetryPolicy bounds the registry's re-query when the server reports an
// empty device list. Devices that were just plugged in can take a moment to
// register, so one short retry smooths over the window.
type RetryPolicy struct {
	// Attempts is the number of extra list requests after the first empty
	// result. Zero disables retrying.
	Attempts int

	// Delay is how long to wait between attempts.
	Delay time.Duration
}

// Registry enumerates connected devices through the background server.
type Registry struct {
	dialer transport.Dialer
	retry  RetryPolicy
	log    *logger.Logger
}

// NewRegistry builds a Registry that queries the server behind dialer.
func NewRegistry(dialer transport.Dialer, retry RetryPolicy, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{dialer: dialer, retry: retry, log: log}
}

// List returns every device the server currently knows about, including
// offline and unauthorized ones. An empty result is re-queried according to
// the retry policy before being returned as-is; an empty list is not an
// error here, callers decide whether it is fatal.
func (r *Registry) List(ctx context.Context) ([]models.Device, error) {
	devices, err := r.listOnce(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 0; len(devices) == 0 && attempt < r.retry.Attempts; attempt++ {
		r.log.Debug().
			Int("attempt", attempt+1).
			Dur("delay", r.retry.Delay).
			Msg("device list empty, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: list devices", transport.ErrCancelled)
		case <-time.After(r.retry.Delay):
		}

		devices, err = r.listOnce(ctx)
		if err != nil {
			return nil, err
		}
	}

	r.log.Debug().Int("count", len(devices)).Msg("device list fetched")
	return devices, nil
}

func (r *Registry) listOnce(ctx context.Context) ([]models.Device, error) {
	conn, err := r.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer conn.Close()

	if err := conn.RoundTrip(protocol.HostDevices); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	raw, err := conn.ReadHexBlock()
	if err != nil {
		return nil, fmt.Errorf("read device list: %w", err)
	}

	return protocol.ParseDeviceList(raw), nil
}

// Properties fetches the named system properties of one device, one getprop
// invocation each, run concurrently on dedicated connections. Missing
// properties come back as empty strings.
func (r *Registry) Properties(ctx context.Context, serial string, names []string) (map[string]string, error) {
	values := make([]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			value, err := r.property(gctx, serial, name)
			if err != nil {
				return err
			}
			values[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	props := make(map[string]string, len(names))
	for i, name := range names {
		props[name] = values[i]
	}
	return props, nil
}

func (r *Registry) property(ctx context.Context, serial, name string) (string, error) {
	conn, err := r.dialer.Dial(ctx)
	if err != nil {
		return "", fmt.Errorf("get property %s: %w", name, err)
	}
	defer conn.Close()

	if err := conn.RoundTrip(protocol.TransportRequest(serial)); err != nil {
		return "", fmt.Errorf("get property %s: %w", name, err)
	}
	if err := conn.RoundTrip(protocol.ShellRequest("getprop " + name)); err != nil {
		return "", fmt.Errorf("get property %s: %w", name, err)
	}

	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		n, readErr := conn.Read(buf)
		out.Write(buf[:n])
		if readErr != nil {
			break
		}
	}
	return strings.TrimSpace(out.String()), nil
}
