package metrics

// Daemon bundles the metrics the scanwedged daemon maintains.
type Daemon struct {
	Registry *Registry

	// Keystrokes counts every keystroke seen by the detector.
	Keystrokes *Counter

	// Bursts counts completed burst evaluations.
	Bursts *Counter

	// ScansAccepted counts bursts classified as scanner input.
	ScansAccepted *Counter

	// BurstsRejected counts bursts classified as human typing.
	BurstsRejected *Counter

	// Resets counts session resets requested over the control socket.
	Resets *Counter

	// BufferLength tracks the current keystroke buffer length.
	BufferLength *Gauge

	// KeyDelay observes inter-keystroke delays in seconds.
	KeyDelay *Histogram
}

// NewDaemon creates the daemon metric set on a fresh registry.
func NewDaemon() *Daemon {
	r := NewRegistry("scanwedged")
	return &Daemon{
		Registry:       r,
		Keystrokes:     r.Counter("keystrokes_total", "Keystrokes observed by the detector", nil),
		Bursts:         r.Counter("bursts_total", "Bursts evaluated by the validator", nil),
		ScansAccepted:  r.Counter("scans_accepted_total", "Bursts accepted as scanner input", nil),
		BurstsRejected: r.Counter("bursts_rejected_total", "Bursts rejected as human typing", nil),
		Resets:         r.Counter("resets_total", "Detector session resets", nil),
		BufferLength:   r.Gauge("buffer_length", "Current keystroke buffer length", nil),
		KeyDelay:       r.Histogram("key_delay_seconds", "Inter-keystroke delay distribution", nil, DelayBuckets),
	}
}
