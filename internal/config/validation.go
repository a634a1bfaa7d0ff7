package config

import (
	"fmt"
	"strings"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all problems found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

var validSourceTypes = map[string]bool{
	"evdev":     true,
	"replay":    true,
	"simulated": true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"text": true, "json": true,
}

var validLogOutputs = map[string]bool{
	"stdout": true, "stderr": true, "file": true, "both": true,
}

// Validate checks the configuration and returns every problem found.
//
// Negative detector tolerances are deliberately not rejected here: the
// classifier accepts them as given (they reject every burst), and the
// daemon only warns about them.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version <= 0 || c.Version > Version {
		errs = append(errs, ValidationError{"version", fmt.Sprintf("must be between 1 and %d", Version)})
	}

	if !validSourceTypes[c.Source.Type] {
		errs = append(errs, ValidationError{"source.type", fmt.Sprintf("unknown source type %q", c.Source.Type)})
	}
	if c.Source.Type == "replay" && c.Source.TracePath == "" {
		errs = append(errs, ValidationError{"source.trace_path", "required for the replay source"})
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		errs = append(errs, ValidationError{"storage.path", "required when storage is enabled"})
	}
	if c.Storage.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{"storage.busy_timeout_ms", "must be non-negative"})
	}

	if c.IPC.Enabled && c.IPC.SocketPath == "" {
		errs = append(errs, ValidationError{"ipc.socket_path", "required when IPC is enabled"})
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, ValidationError{"metrics.listen_addr", "required when metrics are enabled"})
	}

	if !validLogLevels[c.Logging.Level] {
		errs = append(errs, ValidationError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	if !validLogFormats[c.Logging.Format] {
		errs = append(errs, ValidationError{"logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format)})
	}
	if !validLogOutputs[c.Logging.Output] {
		errs = append(errs, ValidationError{"logging.output", fmt.Sprintf("unknown output %q", c.Logging.Output)})
	}
	if (c.Logging.Output == "file" || c.Logging.Output == "both") && c.Logging.FilePath == "" {
		errs = append(errs, ValidationError{"logging.file_path", "required for file output"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Warnings returns non-fatal configuration oddities worth logging.
func (c *Config) Warnings() []string {
	var warns []string
	if c.Detector.WaitToleranceMs < 0 {
		warns = append(warns, "detector.wait_tolerance_ms is negative; every burst will be rejected")
	}
	if c.Detector.VariationToleranceMs < 0 {
		warns = append(warns, "detector.variation_tolerance_ms is negative; every burst will be rejected")
	}
	if c.Detector.WaitToleranceMs > 100 {
		warns = append(warns, "detector.wait_tolerance_ms above 100ms overlaps fast human typing; expect false positives")
	}
	return warns
}
