// SPDX-License-Identifier: Apache-2.0

// Package progress defines the narrow capability interface through which the
// core reports transfer progress. Rendering is entirely external: any
// renderer may implement Sink, including a no-op.
package progress

import "github.com/adbx/adbx/internal/logger"

// Sink receives progress events for a single file transfer. Start is called
// once with the total expected bytes, Update after every transmitted chunk
// with the bytes moved so far, and Finish exactly once when the transfer
// ends (successfully or not).
type Sink interface {
	Start(total int64)
	Update(current int64)
	Finish()
}

// Factory builds a fresh Sink for one file transfer. Concurrent transfers
// each get their own Sink, so implementations never need internal locking.
type Factory func() Sink

// NopFactory returns a silent Sink for every file.
func NopFactory() Sink { return Nop{} }

// Nop is a Sink that ignores every event.
type Nop struct{}

func (Nop) Start(int64)  {}
func (Nop) Update(int64) {}
func (Nop) Finish()      {}

// LogSink reports progress through the ambient logger; useful when no
// interactive renderer is attached.
type LogSink struct {
	Log *logger.Logger

	total int64
}

func (s *LogSink) Start(total int64) {
	s.total = total
	s.Log.Debug().Int64("total", total).Msg("transfer started")
}

func (s *LogSink) Update(current int64) {
	s.Log.Debug().Int64("current", current).Int64("total", s.total).Msg("transfer progress")
}

func (s *LogSink) Finish() {
	s.Log.Debug().Int64("total", s.total).Msg("transfer finished")
}
