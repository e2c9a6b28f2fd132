// SPDX-License-Identifier: Apache-2.0

package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/adbx/adbx/internal/logger"
	"github.com/adbx/adbx/models"
)

// Lister is the device-enumeration dependency of Selector, satisfied by
// Registry.
type Lister interface {
	List(ctx context.Context) ([]models.Device, error)
}

// AliasResolver maps user-defined device nicknames to serials. Satisfied by
// the configuration layer.
type AliasResolver interface {
	LookupAlias(name string) (string, bool)
}

// Selector resolves a user-supplied identifier to exactly one connected
// device. Resolution tries, in order: exact serial match, alias lookup,
// unique case-insensitive substring match.
type Selector struct {
	registry Lister
	aliases  AliasResolver
	log      *logger.Logger
}

// NewSelector builds a Selector. aliases may be nil when no alias source is
// configured.
func NewSelector(registry Lister, aliases AliasResolver, log *logger.Logger) *Selector {
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{registry: registry, aliases: aliases, log: log}
}

// Select resolves identifier to a single device. An empty identifier
// auto-selects when exactly one device is connected and is ambiguous
// otherwise. Matching never silently picks among several candidates; an
// ambiguous identifier fails and the error names every candidate.
func (s *Selector) Select(ctx context.Context, identifier string) (models.Device, error) {
	devices, err := s.registry.List(ctx)
	if err != nil {
		return models.Device{}, err
	}
	if len(devices) == 0 {
		return models.Device{}, ErrNoDevices
	}

	if identifier == "" {
		if len(devices) == 1 {
			return devices[0], nil
		}
		return models.Device{}, fmt.Errorf("%w: %d devices connected, pass an identifier: %s",
			ErrAmbiguousSelection, len(devices), serialList(devices))
	}

	for _, d := range devices {
		if d.Serial == identifier {
			return d, nil
		}
	}

	if s.aliases != nil {
		if serial, ok := s.aliases.LookupAlias(identifier); ok {
			s.log.Debug().Str("alias", identifier).Str("serial", serial).Msg("alias resolved")
			for _, d := range devices {
				if d.Serial == serial {
					return d, nil
				}
			}
		}
	}

	var candidates []models.Device
	needle := strings.ToLower(identifier)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Serial), needle) {
			candidates = append(candidates, d)
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return models.Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, identifier)
	default:
		return models.Device{}, fmt.Errorf("%w: %q matches %s",
			ErrAmbiguousSelection, identifier, serialList(candidates))
	}
}

// EnsureReady rejects devices that are connected but cannot serve requests.
func EnsureReady(d models.Device) error {
	switch d.State {
	case models.StateOffline:
		return fmt.Errorf("%w: %s", ErrDeviceOffline, d.Serial)
	case models.StateUnauthorized:
		return fmt.Errorf("%w: %s", ErrDeviceUnauthorized, d.Serial)
	default:
		return nil
	}
}

func serialList(devices []models.Device) string {
	serials := make([]string, len(devices))
	for i, d := range devices {
		serials[i] = d.Serial
	}
	return strings.Join(serials, ", ")
}
