// scanwedged - keyboard-wedge barcode scanner detection daemon
//
// scanwedged watches a keystroke source, groups keystrokes into bursts
// and classifies each burst as scanner input or human typing based on
// inter-keystroke timing. Accepted scans are journaled to SQLite and
// exposed over a unix control socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scanwedged/internal/config"
	"scanwedged/internal/daemon"
	"scanwedged/internal/logging"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (TOML, JSON or YAML)")
		sourceType  = flag.String("source", "", "override source type: evdev, replay, simulated")
		device      = flag.String("device", "", "override input device path")
		tracePath   = flag.String("trace", "", "trace file for the replay source")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("scanwedged %s\n", version)
		return
	}

	if err := run(*configPath, *sourceType, *device, *tracePath); err != nil {
		fmt.Fprintf(os.Stderr, "scanwedged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, sourceType, device, tracePath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if sourceType != "" {
		cfg.Source.Type = sourceType
	}
	if device != "" {
		cfg.Source.Device = device
	}
	if tracePath != "" {
		cfg.Source.TracePath = tracePath
		if cfg.Source.Type == "" {
			cfg.Source.Type = "replay"
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		return err
	}

	// Hot-reload detector tolerances when the config file changes.
	var watcher *config.Watcher
	if configPath != "" {
		watcher, err = config.NewWatcher(configPath, logger.Logger)
		if err != nil {
			logger.Warn("config watch unavailable", "error", err)
		} else {
			watcher.Start(ctx)
		}
	}

	logger.Info("running", "version", version, "pid", os.Getpid())

	for {
		var updates <-chan *config.Config
		if watcher != nil {
			updates = watcher.Updates()
		}

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if watcher != nil {
				watcher.Stop()
			}
			return d.Stop()
		case updated, ok := <-updates:
			if !ok {
				watcher = nil
				continue
			}
			d.ApplyDetectorConfig(updated.Detector)
		}
	}
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  int64(cfg.Logging.MaxSizeMB),
		MaxBackups: cfg.Logging.MaxBackups,
		Component:  "scanwedged",
	})
}
