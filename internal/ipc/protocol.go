// Package ipc provides the control channel between the scanwedged daemon
// and client tooling.
//
// The protocol is newline-delimited JSON over a unix domain socket: each
// request is one JSON object on a single line, answered by one JSON
// object on a single line.
package ipc

import (
	"encoding/json"
	"time"
)

// Protocol version for compatibility checking.
const ProtocolVersion = 1

// Request methods.
const (
	MethodPing   = "ping"
	MethodStatus = "status"
	MethodReset  = "reset"
	MethodRecent = "recent"
)

// Request is a single client request.
type Request struct {
	Version int    `json:"version"`
	Method  string `json:"method"`

	// Count limits the number of results for "recent". Zero means the
	// server default.
	Count int `json:"count,omitempty"`
}

// Response is the server's answer to a Request.
type Response struct {
	Version int    `json:"version"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`

	Status *StatusReply `json:"status,omitempty"`
	Scans  []ScanReply  `json:"scans,omitempty"`
}

// StatusReply describes the running daemon.
type StatusReply struct {
	PID             int              `json:"pid"`
	Uptime          string           `json:"uptime"`
	Source          string           `json:"source"`
	Buffered        int              `json:"buffered"`
	WaitTolerance   string           `json:"wait_tolerance"`
	VariationTol    string           `json:"variation_tolerance"`
	Counters        map[string]int64 `json:"counters,omitempty"`
	StorageEnabled  bool             `json:"storage_enabled"`
	MetricsListen   string           `json:"metrics_listen,omitempty"`
}

// ScanReply is one accepted scan in a "recent" response.
type ScanReply struct {
	CapturedAt time.Time `json:"captured_at"`
	Code       string    `json:"code"`
	Length     int       `json:"length"`
	MeanDelay  string    `json:"mean_delay"`
	Source     string    `json:"source"`
}

func errorResponse(msg string) *Response {
	return &Response{Version: ProtocolVersion, OK: false, Error: msg}
}

func marshalLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
