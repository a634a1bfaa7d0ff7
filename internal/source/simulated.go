package source

import (
	"context"
	"time"
)

// Simulated is a source driven by explicit calls instead of hardware.
// Used by tests and by tools that feed recorded traces.
type Simulated struct {
	base
}

// NewSimulated creates a simulated source.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Start begins accepting simulated events.
func (s *Simulated) Start(ctx context.Context) error {
	return s.start()
}

// Stop stops the source and closes the event channel.
func (s *Simulated) Stop() error {
	if !s.stop() {
		return nil
	}
	s.closeChan()
	return nil
}

// Available always reports true.
func (s *Simulated) Available() (bool, string) {
	return true, "simulated source (for testing)"
}

// Press delivers one simulated keystroke with the given timestamp.
func (s *Simulated) Press(r rune, at time.Time) {
	s.emit(Event{Rune: r, At: at})
}

// Type delivers the runes of text with a fixed delay between the
// synthetic timestamps, starting at start.
func (s *Simulated) Type(text string, start time.Time, delay time.Duration) {
	at := start
	for _, r := range text {
		s.Press(r, at)
		at = at.Add(delay)
	}
}
