package daemon

import (
	"errors"
	"os"
	"time"

	"scanwedged/internal/ipc"
	"scanwedged/internal/store"
)

// The daemon is its own IPC handler.
var _ ipc.Handler = (*Daemon)(nil)

// Status implements ipc.Handler.
func (d *Daemon) Status() (*ipc.StatusReply, error) {
	d.mu.Lock()
	session := d.session
	started := d.started
	d.mu.Unlock()

	settings := session.Settings()

	reply := &ipc.StatusReply{
		PID:            os.Getpid(),
		Uptime:         time.Since(started).Round(time.Second).String(),
		Source:         d.cfg.Source.Type,
		Buffered:       session.Buffered(),
		WaitTolerance:  settings.WaitTolerance.String(),
		VariationTol:   settings.VariationTolerance.String(),
		Counters:       d.metrics.Registry.Snapshot(),
		StorageEnabled: d.journal != nil,
	}
	if d.cfg.Metrics.Enabled {
		reply.MetricsListen = d.cfg.Metrics.ListenAddr
	}
	return reply, nil
}

// Reset implements ipc.Handler. It discards the detector's buffered
// keystrokes without evaluating them.
func (d *Daemon) Reset() error {
	d.mu.Lock()
	session := d.session
	d.mu.Unlock()

	session.Reset()
	d.metrics.Resets.Inc()
	d.metrics.BufferLength.Set(0)
	d.logger.Info("session reset via control socket")
	return nil
}

// Recent implements ipc.Handler.
func (d *Daemon) Recent(n int) ([]ipc.ScanReply, error) {
	if d.journal == nil {
		return nil, errors.New("storage disabled")
	}

	scans, err := d.journal.RecentScans(n)
	if err != nil {
		return nil, err
	}

	replies := make([]ipc.ScanReply, 0, len(scans))
	for _, sc := range scans {
		replies = append(replies, scanReply(sc))
	}
	return replies, nil
}

func scanReply(sc store.Scan) ipc.ScanReply {
	return ipc.ScanReply{
		CapturedAt: sc.CapturedAt,
		Code:       sc.Code,
		Length:     sc.Length,
		MeanDelay:  sc.MeanDelay.String(),
		Source:     sc.Source,
	}
}
