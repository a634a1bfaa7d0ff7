package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file when it changes on disk and
// delivers the freshly loaded (and validated) result on a channel.
// Editors replace files rather than rewriting them in place, so the
// watch covers the containing directory and filters by name.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	updates chan *Config

	cancel context.CancelFunc
	done   chan struct{}
}

// debounce is how long the file must be quiet before a reload; editors
// produce several events per save.
const debounce = 200 * time.Millisecond

// NewWatcher creates a watcher for the given config path.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		path = ConfigPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		logger:  logger.With("component", "config_watcher"),
		watcher: fw,
		updates: make(chan *Config, 1),
	}, nil
}

// Start begins watching. Updates are delivered until Stop or context
// cancellation; an update that fails to load or validate is logged and
// dropped, keeping the running configuration in effect.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Updates returns the channel of reloaded configurations.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Stop stops watching and closes the updates channel.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
	w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.updates)

	var pending *time.Timer
	var pendingC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(debounce)
				pendingC = pending.C
			} else {
				pending.Reset(debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watch error", "error", err)

		case <-pendingC:
			pending = nil
			pendingC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error("reloaded config invalid", "path", w.path, "error", err)
		return
	}

	// Only the newest configuration matters: displace a queued update
	// the consumer has not picked up yet.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	default:
	}
	w.logger.Info("configuration reloaded", "path", w.path)
}
