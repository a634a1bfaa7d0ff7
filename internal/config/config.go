// Package config handles configuration loading, validation, and management
// for scanwedged.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Detector holds the burst classification tolerances.
	Detector DetectorConfig `toml:"detector" json:"detector" yaml:"detector"`

	// Source selects and configures the keystroke event source.
	Source SourceConfig `toml:"source" json:"source" yaml:"source"`

	// Storage configures the scan journal.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// IPC configures the local control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// Metrics configures the metrics endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Logging configures log output.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DetectorConfig holds the timing tolerances of the classifier.
type DetectorConfig struct {
	// WaitToleranceMs is the maximum inter-key delay, in milliseconds,
	// for two keystrokes to count as part of the same automated burst.
	WaitToleranceMs int `toml:"wait_tolerance_ms" json:"wait_tolerance_ms" yaml:"wait_tolerance_ms"`

	// VariationToleranceMs is the maximum deviation, in milliseconds, of
	// one inter-key delay from the burst's running average.
	VariationToleranceMs int `toml:"variation_tolerance_ms" json:"variation_tolerance_ms" yaml:"variation_tolerance_ms"`
}

// WaitTolerance returns the wait tolerance as a duration.
func (d DetectorConfig) WaitTolerance() time.Duration {
	return time.Duration(d.WaitToleranceMs) * time.Millisecond
}

// VariationTolerance returns the variation tolerance as a duration.
func (d DetectorConfig) VariationTolerance() time.Duration {
	return time.Duration(d.VariationToleranceMs) * time.Millisecond
}

// SourceConfig selects the keystroke event source.
type SourceConfig struct {
	// Type is the source type: "evdev", "replay", or "simulated".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Device is the input device path for the evdev source. Empty means
	// the first readable keyboard device.
	Device string `toml:"device" json:"device" yaml:"device"`

	// TracePath is the trace file for the replay source.
	TracePath string `toml:"trace_path" json:"trace_path" yaml:"trace_path"`

	// Realtime makes the replay source sleep between trace steps.
	Realtime bool `toml:"realtime" json:"realtime" yaml:"realtime"`
}

// StorageConfig holds scan journal persistence configuration.
type StorageConfig struct {
	// Enabled determines whether scans are persisted at all.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// IPCConfig holds control socket configuration.
type IPCConfig struct {
	// Enabled determines whether the control socket is served.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SocketPath is the path to the Unix socket.
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	// Enabled determines whether the metrics HTTP endpoint is served.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the address the metrics endpoint listens on.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Detector: DetectorConfig{
			WaitToleranceMs:      20,
			VariationToleranceMs: 3,
		},
		Source: SourceConfig{
			Type: "evdev",
		},
		Storage: StorageConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "scans.db"),
			BusyTimeoutMs: 5000,
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: defaultSocketPath(),
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9417",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "scanwedged.log"),
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Load reads configuration from the specified path over the defaults.
// A missing file yields the default configuration. The format follows
// the file extension: TOML, JSON (schema-checked), or YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		if err := ValidateJSON(data); err != nil {
			return nil, fmt.Errorf("config schema: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides applies SCANWEDGED_* environment overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SCANWEDGED_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SCANWEDGED_SOCKET_PATH"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("SCANWEDGED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCANWEDGED_SOURCE_DEVICE"); v != "" {
		c.Source.Device = v
	}
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.Path),
		filepath.Dir(c.Logging.FilePath),
		filepath.Dir(c.IPC.SocketPath),
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DataDir returns the base scanwedged data directory, honoring the
// SCANWEDGED_DATA_DIR override.
func DataDir() string {
	if envDir := os.Getenv("SCANWEDGED_DATA_DIR"); envDir != "" {
		return envDir
	}
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "scanwedged")
	case "windows":
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		return filepath.Join(appData, "scanwedged")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "scanwedged")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "scanwedged")
	}
}

func defaultSocketPath() string {
	switch runtime.GOOS {
	case "linux":
		if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
			return filepath.Join(xdgRuntime, "scanwedged.sock")
		}
		return "/tmp/scanwedged.sock"
	case "darwin":
		return filepath.Join(DataDir(), "scanwedged.sock")
	default:
		return "/tmp/scanwedged.sock"
	}
}
