package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator writes to a log file and rotates it when it exceeds the
// configured maximum size. Rotated files get a timestamp suffix and old
// backups beyond MaxBackups are removed.
type FileRotator struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewFileRotator creates a FileRotator for the configured log file.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log file path not set")
	}

	maxBytes := cfg.MaxSizeMB * 1024 * 1024
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}

	r := &FileRotator{
		path:       cfg.FilePath,
		maxBytes:   maxBytes,
		maxBackups: cfg.MaxBackups,
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if err := r.open(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *FileRotator) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = f
	r.written = info.Size()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	if r.written+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.written += int64(n)
	return n, err
}

// rotate renames the current log file with a timestamp suffix and opens
// a fresh one. Caller must hold r.mu.
func (r *FileRotator) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	ext := filepath.Ext(r.path)
	base := strings.TrimSuffix(r.path, ext)
	rotated := fmt.Sprintf("%s-%s%s", base, time.Now().Format("20060102-150405"), ext)

	if err := os.Rename(r.path, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate log file: %w", err)
	}

	if err := r.open(); err != nil {
		return err
	}

	r.cleanup()
	return nil
}

// cleanup removes rotated backups beyond maxBackups, oldest first.
func (r *FileRotator) cleanup() {
	if r.maxBackups <= 0 {
		return
	}

	ext := filepath.Ext(r.path)
	base := strings.TrimSuffix(r.path, ext)
	matches, err := filepath.Glob(base + "-*" + ext)
	if err != nil || len(matches) <= r.maxBackups {
		return
	}

	sort.Strings(matches)
	for _, old := range matches[:len(matches)-r.maxBackups] {
		os.Remove(old)
	}
}

// Sync flushes the current log file to disk.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

// Close closes the current log file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
