//go:build !linux

package source

import "context"

// Evdev is only implemented on Linux; elsewhere it reports unavailable.
type Evdev struct {
	base
}

// NewEvdev creates a stub evdev source.
func NewEvdev(device string) *Evdev {
	return &Evdev{}
}

// Start always fails on non-Linux platforms.
func (e *Evdev) Start(ctx context.Context) error {
	return ErrNotAvailable
}

// Stop is a no-op.
func (e *Evdev) Stop() error {
	return nil
}

// Available reports false.
func (e *Evdev) Available() (bool, string) {
	return false, "evdev source requires Linux"
}
