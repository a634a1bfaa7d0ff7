package burst

import "time"

const (
	// DefaultWaitTolerance is the maximum delay between two consecutive
	// keystrokes for them to count as part of the same automated burst.
	DefaultWaitTolerance = 20 * time.Millisecond

	// DefaultVariationTolerance is the maximum deviation of one inter-key
	// delay from the burst's running average delay.
	DefaultVariationTolerance = 3 * time.Millisecond

	// FlushDelay is the idle window after the last keystroke before a
	// pending burst is forcibly resolved.
	FlushDelay = 250 * time.Millisecond

	// MinScanLength is the keystroke count an accepted burst must
	// strictly exceed. No human sustains 4+ keystrokes inside the timing
	// tolerances, and real barcodes are always longer than 3 characters.
	MinScanLength = 3
)

// ScanFunc receives the decoded string of an accepted burst and the
// mean inter-key delay across its accepted keystrokes.
type ScanFunc func(code string, meanDelay time.Duration)

// DebugFunc receives one human-readable diagnostic line.
type DebugFunc func(msg string)

// Settings configures a Session. It is resolved once at construction
// and immutable for the session's lifetime.
//
// Tolerances are not validated: a negative value is kept as given and
// simply rejects every burst. A zero tolerance is treated as unset and
// replaced by its default.
type Settings struct {
	// WaitTolerance bounds the delay between consecutive keystrokes.
	WaitTolerance time.Duration

	// VariationTolerance bounds how far one delay may stray from the
	// running average of the burst's delays.
	VariationTolerance time.Duration

	// OnScan is invoked with the decoded string and the burst's mean
	// inter-key delay when a burst validates as a scan. Nil means
	// accepted scans are silently discarded.
	OnScan ScanFunc

	// OnDebug receives diagnostics for rejected bursts. Nil drops them.
	OnDebug DebugFunc
}

// withDefaults returns a copy with unset fields replaced by defaults and
// nil callbacks replaced by no-ops.
func (s Settings) withDefaults() Settings {
	if s.WaitTolerance == 0 {
		s.WaitTolerance = DefaultWaitTolerance
	}
	if s.VariationTolerance == 0 {
		s.VariationTolerance = DefaultVariationTolerance
	}
	if s.OnScan == nil {
		s.OnScan = func(string, time.Duration) {}
	}
	if s.OnDebug == nil {
		s.OnDebug = func(string) {}
	}
	return s
}
