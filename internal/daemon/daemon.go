// Package daemon wires the keystroke source, burst detector, journal,
// IPC server and metrics endpoint into the scanwedged process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"scanwedged/internal/burst"
	"scanwedged/internal/config"
	"scanwedged/internal/ipc"
	"scanwedged/internal/logging"
	"scanwedged/internal/metrics"
	"scanwedged/internal/source"
	"scanwedged/internal/store"
)

// ErrAlreadyRunning is returned when Start is called on a running daemon.
var ErrAlreadyRunning = errors.New("daemon: already running")

// Daemon is the scanwedged process core.
type Daemon struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Daemon

	session *burst.Session
	src     source.Source
	journal *store.SQLiteStore
	ipcSrv  *ipc.Server
	httpSrv *http.Server

	mu      sync.Mutex
	running bool
	started time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// lastAt is the timestamp of the most recent keystroke, used to
	// derive per-key delay observations for metrics.
	lastAt time.Time
}

// New builds a Daemon from the given configuration. The keystroke
// source is chosen by cfg.Source.Type.
func New(cfg *config.Config, logger *logging.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.Default()
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  logger.WithComponent("daemon"),
		metrics: metrics.NewDaemon(),
	}

	d.session = burst.NewSession(burst.Settings{
		WaitTolerance:      cfg.Detector.WaitTolerance(),
		VariationTolerance: cfg.Detector.VariationTolerance(),
		OnScan:             d.onScan,
		OnDebug:            d.onDebug,
	})

	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	d.src = src

	if cfg.Storage.Enabled {
		journal, err := store.Open(cfg.Storage.Path, time.Duration(cfg.Storage.BusyTimeoutMs)*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("open scan journal: %w", err)
		}
		d.journal = journal
	}

	return d, nil
}

func newSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Type {
	case "evdev":
		return source.NewEvdev(cfg.Source.Device), nil
	case "replay":
		f, err := os.Open(cfg.Source.TracePath)
		if err != nil {
			return nil, fmt.Errorf("open trace: %w", err)
		}
		defer f.Close()
		steps, err := source.ParseTrace(f)
		if err != nil {
			return nil, fmt.Errorf("parse trace: %w", err)
		}
		return source.NewReplay(steps, cfg.Source.Realtime), nil
	case "simulated":
		return source.NewSimulated(), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// Start begins consuming keystrokes and serving the control socket.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)

	if err := d.src.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start source: %w", err)
	}

	if d.cfg.IPC.Enabled {
		d.ipcSrv = ipc.NewServer(d.cfg.IPC.SocketPath, d, d.logger)
		if err := d.ipcSrv.Start(ctx); err != nil {
			d.src.Stop()
			cancel()
			return fmt.Errorf("start ipc: %w", err)
		}
	}

	if d.cfg.Metrics.Enabled {
		d.httpSrv = &http.Server{
			Addr:    d.cfg.Metrics.ListenAddr,
			Handler: d.metrics.Registry.HTTPHandler(),
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		d.logger.Info("metrics endpoint listening", "addr", d.cfg.Metrics.ListenAddr)
	}

	d.cancel = cancel
	d.running = true
	d.started = time.Now()

	d.wg.Add(1)
	go d.consumeLoop(ctx)

	d.logger.Info("started",
		"source", d.cfg.Source.Type,
		"wait_tolerance", d.cfg.Detector.WaitTolerance(),
		"variation_tolerance", d.cfg.Detector.VariationTolerance())
	return nil
}

// Stop shuts down the daemon and flushes any buffered keystrokes.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.src.Stop()

	if d.ipcSrv != nil {
		d.ipcSrv.Stop()
	}
	if d.httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		d.httpSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	d.wg.Wait()

	d.session.Reset()

	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
	}

	d.logger.Info("stopped")
	return nil
}

// ApplyDetectorConfig swaps the detector tolerances at runtime. Buffered
// keystrokes are discarded so the new settings apply cleanly.
func (d *Daemon) ApplyDetectorConfig(dc config.DetectorConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.session.Reset()
	d.session = burst.NewSession(burst.Settings{
		WaitTolerance:      dc.WaitTolerance(),
		VariationTolerance: dc.VariationTolerance(),
		OnScan:             d.onScan,
		OnDebug:            d.onDebug,
	})
	d.logger.Info("detector reconfigured",
		"wait_tolerance", dc.WaitTolerance(),
		"variation_tolerance", dc.VariationTolerance())
}

func (d *Daemon) consumeLoop(ctx context.Context) {
	defer d.wg.Done()

	events := d.src.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.handleKeystroke(ev)
		}
	}
}

func (d *Daemon) handleKeystroke(ev source.Event) {
	d.metrics.Keystrokes.Inc()

	d.mu.Lock()
	if !d.lastAt.IsZero() {
		d.metrics.KeyDelay.ObserveDuration(ev.At.Sub(d.lastAt))
	}
	d.lastAt = ev.At
	session := d.session
	d.mu.Unlock()

	session.OnKeystroke(ev.Rune, ev.At)
	d.metrics.BufferLength.Set(int64(session.Buffered()))
}

// onScan runs when a burst is accepted as scanner input.
func (d *Daemon) onScan(code string, meanDelay time.Duration) {
	d.metrics.Bursts.Inc()
	d.metrics.ScansAccepted.Inc()
	d.metrics.BufferLength.Set(0)

	d.logger.Info("scan accepted", "length", len(code), "mean_delay", meanDelay)

	if d.journal != nil {
		_, err := d.journal.InsertScan(store.Scan{
			CapturedAt: time.Now(),
			Code:       code,
			Length:     len([]rune(code)),
			MeanDelay:  meanDelay,
			Source:     d.cfg.Source.Type,
		})
		if err != nil {
			d.logger.Error("journal scan failed", "error", err)
		}
	}
}

// onDebug runs when a burst is rejected.
func (d *Daemon) onDebug(msg string) {
	d.metrics.Bursts.Inc()
	d.metrics.BurstsRejected.Inc()
	d.metrics.BufferLength.Set(0)

	d.logger.Debug("burst rejected", "detail", msg)

	if d.journal != nil {
		_, err := d.journal.InsertReject(store.Reject{
			CapturedAt: time.Now(),
			Reason:     store.ReasonRejected,
		})
		if err != nil {
			d.logger.Error("journal reject failed", "error", err)
		}
	}
}

// Session exposes the detector session, for tests and the simulated
// source path.
func (d *Daemon) Session() *burst.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Source exposes the active keystroke source.
func (d *Daemon) Source() source.Source {
	return d.src
}
