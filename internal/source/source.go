// Package source supplies decoded keystroke events to a burst session.
//
// A Source is a collaborator, not part of the classification core: it
// owns the platform plumbing (evdev on Linux, simulated and replay
// sources everywhere) and delivers one Event per received key, carrying
// the decoded code point and the timestamp the event was observed at.
package source

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event is one decoded key event.
type Event struct {
	Rune rune
	At   time.Time
}

// Source delivers keystroke events on a channel.
type Source interface {
	// Start begins delivering events. It does not block.
	Start(ctx context.Context) error

	// Stop stops delivery and closes the event channel.
	Stop() error

	// Events returns the channel events are delivered on.
	Events() <-chan Event

	// Available reports whether this source can run on the current
	// platform with current permissions, with a human-readable reason.
	Available() (bool, string)
}

// ErrNotAvailable is returned when a source cannot run on this platform.
var ErrNotAvailable = errors.New("keystroke source not available on this platform")

// ErrAlreadyRunning is returned when Start is called while running.
var ErrAlreadyRunning = errors.New("source already running")

// base carries the shared channel and running state for implementations.
type base struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	running bool
}

func (b *base) Events() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		b.ch = make(chan Event, 64)
	}
	return b.ch
}

func (b *base) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrAlreadyRunning
	}
	if b.ch == nil || b.closed {
		b.ch = make(chan Event, 64)
		b.closed = false
	}
	b.running = true
	return nil
}

func (b *base) stop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return false
	}
	b.running = false
	return true
}

func (b *base) emit(ev Event) {
	b.mu.Lock()
	ch := b.ch
	running := b.running
	b.mu.Unlock()
	if !running || ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		// Consumer stalled; dropping is preferable to blocking the
		// platform read loop.
	}
}

// channel exposes the underlying channel for sources that need blocking
// sends (replay must not drop steps).
func (b *base) channel() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		b.ch = make(chan Event, 64)
	}
	return b.ch
}

// closeChan closes the event channel but leaves it in place so a late
// Events() caller can still observe the close.
func (b *base) closeChan() {
	b.mu.Lock()
	if b.ch != nil && !b.closed {
		close(b.ch)
		b.closed = true
	}
	b.mu.Unlock()
}
