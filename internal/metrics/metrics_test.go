package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewRegistry("test")

	c := r.Counter("events_total", "events", nil)
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("counter = %d, want 5", c.Value())
	}

	g := r.Gauge("depth", "queue depth", nil)
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 9 {
		t.Errorf("gauge = %d, want 9", g.Value())
	}
}

func TestRegistryReturnsSameMetric(t *testing.T) {
	r := NewRegistry("test")
	a := r.Counter("hits_total", "hits", nil)
	b := r.Counter("hits_total", "hits", nil)
	if a != b {
		t.Error("expected the same counter instance for repeated registration")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Errorf("value via second handle = %d, want 1", b.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("test")
	h := r.Histogram("delay_seconds", "delays", nil, []float64{0.01, 0.1, 1})

	h.ObserveDuration(5 * time.Millisecond)
	h.ObserveDuration(50 * time.Millisecond)
	h.Observe(2)

	if h.Count() != 3 {
		t.Errorf("count = %d, want 3", h.Count())
	}

	var sb strings.Builder
	if err := r.WritePrometheus(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		`test_delay_seconds_bucket{le="0.01"} 1`,
		`test_delay_seconds_bucket{le="0.1"} 2`,
		`test_delay_seconds_bucket{le="1"} 2`,
		`test_delay_seconds_bucket{le="+Inf"} 3`,
		`test_delay_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestLabelsRendering(t *testing.T) {
	l := Labels{"source": "evdev", "device": "kbd0"}
	got := l.String()
	if got != `{device="kbd0",source="evdev"}` {
		t.Errorf("labels = %s", got)
	}
	if (Labels{}).String() != "" {
		t.Error("empty labels should render as empty string")
	}
}

func TestHTTPHandler(t *testing.T) {
	d := NewDaemon()
	d.Keystrokes.Add(42)
	d.ScansAccepted.Inc()
	d.BufferLength.Set(3)

	srv := httptest.NewServer(d.Registry.HTTPHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var sb strings.Builder
	if err := d.Registry.WritePrometheus(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		"scanwedged_keystrokes_total 42",
		"scanwedged_scans_accepted_total 1",
		"scanwedged_buffer_length 3",
		"# TYPE scanwedged_keystrokes_total counter",
		"# TYPE scanwedged_buffer_length gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestSnapshot(t *testing.T) {
	d := NewDaemon()
	d.Bursts.Add(7)
	d.BufferLength.Set(2)

	snap := d.Registry.Snapshot()
	if snap["scanwedged_bursts_total"] != 7 {
		t.Errorf("snapshot bursts = %d", snap["scanwedged_bursts_total"])
	}
	if snap["scanwedged_buffer_length"] != 2 {
		t.Errorf("snapshot buffer_length = %d", snap["scanwedged_buffer_length"])
	}
}
