// Package sink provides consumers for the canonical event stream a sync run
// produces. All sinks are safe for concurrent emitters: orchestrators for
// different entity types share one sink, and within one entity type the
// emission order matches the order records came off the wire.
package sink

import (
	"context"
	"sync"

	"github.com/confluxdata/conflux/pkg/sync/core"
	"github.com/confluxdata/conflux/pkg/syncerrors"
)

// ChannelSink delivers events over a buffered channel. Downstream
// consumers range over Events until the sink is closed.
type ChannelSink struct {
	events chan core.CanonicalEvent
	done   chan struct{}

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewChannelSink creates a channel-backed sink with the given buffer depth.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1024
	}
	return &ChannelSink{
		events: make(chan core.CanonicalEvent, buffer),
		done:   make(chan struct{}),
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan core.CanonicalEvent {
	return s.events
}

// Emit delivers one event, blocking when the buffer is full until a
// consumer drains it, the context is canceled, or the sink is closed.
func (s *ChannelSink) Emit(ctx context.Context, event core.CanonicalEvent) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return syncerrors.New(syncerrors.ErrorTypeInternal, "emit on closed sink")
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return syncerrors.New(syncerrors.ErrorTypeInternal, "emit on closed sink")
	case <-ctx.Done():
		return syncerrors.Wrap(ctx.Err(), syncerrors.ErrorTypeTimeout, "event emission canceled")
	}
}

// Close unblocks pending emitters, waits for them to return, then closes
// the event channel so consumers ranging over Events terminate. The events
// channel itself is closed only once no Emit can still be sending on it.
// Close is idempotent.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.inflight.Wait()
	close(s.events)
	return nil
}

var _ core.EventSink = (*ChannelSink)(nil)

// CollectorSink accumulates events in memory, preserving emission order.
// It backs tests and dry runs.
type CollectorSink struct {
	mu     sync.Mutex
	events []core.CanonicalEvent
}

// NewCollectorSink creates an empty collecting sink.
func NewCollectorSink() *CollectorSink {
	return &CollectorSink{}
}

// Emit appends the event.
func (s *CollectorSink) Emit(_ context.Context, event core.CanonicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Close is a no-op.
func (s *CollectorSink) Close() error { return nil }

// Events returns a copy of the collected events in emission order.
func (s *CollectorSink) Events() []core.CanonicalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.CanonicalEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns how many events have been collected.
func (s *CollectorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var _ core.EventSink = (*CollectorSink)(nil)
