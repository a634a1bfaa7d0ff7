package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanwedged/internal/burst"
	"scanwedged/internal/config"
	"scanwedged/internal/ipc"
	"scanwedged/internal/source"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Source.Type = "simulated"
	cfg.Storage.Path = filepath.Join(dir, "scans.db")
	cfg.IPC.SocketPath = filepath.Join(dir, "scanwedged.sock")
	cfg.Metrics.Enabled = false
	return cfg
}

func startTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { d.Stop() })
	return d
}

func writeTrace(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScannerBurstIsJournaled(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)

	sim := d.Source().(*source.Simulated)
	sim.Type("5901234123457", time.Now(), 5*time.Millisecond)

	// The burst resolves after the flush timer fires.
	waitFor(t, 2*time.Second, func() bool {
		return d.metrics.ScansAccepted.Value() == 1
	})

	scans, err := d.journal.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "5901234123457", scans[0].Code)
	assert.Equal(t, 13, scans[0].Length)
	assert.Equal(t, 5*time.Millisecond, scans[0].MeanDelay)
	assert.Equal(t, "simulated", scans[0].Source)
}

func TestHumanTypingIsRejected(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)

	sim := d.Source().(*source.Simulated)
	base := time.Now()
	// Irregular human-paced delays well past the variation tolerance.
	sim.Press('h', base)
	sim.Press('e', base.Add(5*time.Millisecond))
	sim.Press('l', base.Add(11*time.Millisecond))
	sim.Press('p', base.Add(30*time.Millisecond))

	waitFor(t, 2*time.Second, func() bool {
		return d.metrics.BurstsRejected.Value() == 1
	})
	assert.Equal(t, uint64(0), d.metrics.ScansAccepted.Value())

	n, err := d.journal.CountRejects()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStatusOverSocket(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)
	_ = d

	client := ipc.NewClient(cfg.IPC.SocketPath)
	require.NoError(t, client.Ping())

	status, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, "simulated", status.Source)
	assert.Equal(t, "20ms", status.WaitTolerance)
	assert.Equal(t, "3ms", status.VariationTol)
	assert.True(t, status.StorageEnabled)
}

func TestResetOverSocket(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)

	sim := d.Source().(*source.Simulated)
	base := time.Now()
	sim.Press('1', base)
	sim.Press('2', base.Add(5*time.Millisecond))

	waitFor(t, time.Second, func() bool {
		return d.Session().Buffered() == 2
	})

	client := ipc.NewClient(cfg.IPC.SocketPath)
	require.NoError(t, client.Reset())

	assert.Equal(t, 0, d.Session().Buffered())
	assert.Equal(t, uint64(1), d.metrics.Resets.Value())
}

func TestRecentOverSocket(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)

	sim := d.Source().(*source.Simulated)
	sim.Type("4006381333931", time.Now(), 5*time.Millisecond)

	waitFor(t, 2*time.Second, func() bool {
		return d.metrics.ScansAccepted.Value() == 1
	})

	client := ipc.NewClient(cfg.IPC.SocketPath)
	scans, err := client.Recent(5)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "4006381333931", scans[0].Code)
	assert.Equal(t, "5ms", scans[0].MeanDelay)
}

func TestRecentWithStorageDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Enabled = false
	d := startTestDaemon(t, cfg)
	_ = d

	client := ipc.NewClient(cfg.IPC.SocketPath)
	_, err := client.Recent(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage disabled")
}

func TestDoubleStart(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())
}

func TestApplyDetectorConfig(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)

	d.ApplyDetectorConfig(config.DetectorConfig{
		WaitToleranceMs:      40,
		VariationToleranceMs: 6,
	})

	settings := d.Session().Settings()
	assert.Equal(t, 40*time.Millisecond, settings.WaitTolerance)
	assert.Equal(t, 6*time.Millisecond, settings.VariationTolerance)
}

func TestReplaySourceEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Type = "replay"
	cfg.Source.Realtime = false

	trace := filepath.Join(t.TempDir(), "scan.trace")
	writeTrace(t, trace, "0 5\n5 9\n5 0\n5 1\n5 2\n5 3\n5 4\n")
	cfg.Source.TracePath = trace

	d := startTestDaemon(t, cfg)

	waitFor(t, 2*time.Second, func() bool {
		return d.metrics.ScansAccepted.Value() == 1
	})

	scans, err := d.journal.RecentScans(1)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "5901234", scans[0].Code)
}

func TestUnknownSourceType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Type = "telepathy"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestBurstSessionDefaultsMatchDetector(t *testing.T) {
	cfg := testConfig(t)
	d := startTestDaemon(t, cfg)

	settings := d.Session().Settings()
	assert.Equal(t, burst.DefaultWaitTolerance, settings.WaitTolerance)
	assert.Equal(t, burst.DefaultVariationTolerance, settings.VariationTolerance)
}
