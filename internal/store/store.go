// Package store persists accepted scans and rejected bursts in SQLite.
package store

import (
	"time"
)

// Scan is one accepted barcode scan.
type Scan struct {
	ID         int64
	CapturedAt time.Time
	Code       string
	Length     int
	MeanDelay  time.Duration
	Source     string
}

// Reject records a burst that failed validation.
type Reject struct {
	ID         int64
	CapturedAt time.Time
	Reason     string
	Length     int
}

// ReasonRejected marks a burst the validator classified as human
// typing, whether on variation or length grounds. Bursts discarded
// without evaluation emit no callback and are not journaled.
const ReasonRejected = "rejected"
