// Package burst classifies rapid keyboard input as scanner-generated or
// human-typed using only the timing between consecutive keystrokes.
//
// Keyboard-wedge barcode scanners type their payload as a short burst of
// key events with nearly uniform inter-key delays, far faster and far
// steadier than a human can sustain. The package buffers keystrokes into
// bursts, bounds each burst by an idle window, and accepts a burst as a
// scan when every inter-key delay stays inside a fixed tolerance of the
// burst's running average.
//
// This is a statistical heuristic, not device-level detection: an
// exceptionally steady typist can (rarely) produce a false positive, and
// a scanner configured with inter-character delays can evade it.
package burst

import "time"

// Keystroke is one received key event: a single decoded code point and
// the timestamp the event source recorded for it. Keystrokes are never
// mutated after creation and are discarded when the session resets.
type Keystroke struct {
	Rune rune
	At   time.Time
}
