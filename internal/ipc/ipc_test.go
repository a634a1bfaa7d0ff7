package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	resets int
	scans  []ScanReply
	fail   bool
}

func (h *fakeHandler) Status() (*StatusReply, error) {
	if h.fail {
		return nil, errors.New("status unavailable")
	}
	return &StatusReply{
		PID:           1234,
		Uptime:        "5m0s",
		Source:        "simulated",
		Buffered:      2,
		WaitTolerance: "20ms",
		VariationTol:  "3ms",
	}, nil
}

func (h *fakeHandler) Reset() error {
	h.resets++
	return nil
}

func (h *fakeHandler) Recent(n int) ([]ScanReply, error) {
	if n <= 0 || n > len(h.scans) {
		n = len(h.scans)
	}
	return h.scans[:n], nil
}

func startTestServer(t *testing.T, h Handler) (*Server, *Client) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scanwedged.sock")
	srv := NewServer(path, h, nil)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv, NewClient(path)
}

func TestPing(t *testing.T) {
	_, client := startTestServer(t, &fakeHandler{})
	require.NoError(t, client.Ping())
}

func TestStatus(t *testing.T) {
	_, client := startTestServer(t, &fakeHandler{})

	status, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, 1234, status.PID)
	assert.Equal(t, "simulated", status.Source)
	assert.Equal(t, 2, status.Buffered)
	assert.Equal(t, "20ms", status.WaitTolerance)
}

func TestStatusError(t *testing.T) {
	_, client := startTestServer(t, &fakeHandler{fail: true})

	_, err := client.Status()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status unavailable")
}

func TestReset(t *testing.T) {
	h := &fakeHandler{}
	_, client := startTestServer(t, h)

	require.NoError(t, client.Reset())
	require.NoError(t, client.Reset())
	assert.Equal(t, 2, h.resets)
}

func TestRecent(t *testing.T) {
	h := &fakeHandler{scans: []ScanReply{
		{Code: "5901234123457", Length: 13, MeanDelay: "5ms", Source: "evdev", CapturedAt: time.Unix(1700000100, 0).UTC()},
		{Code: "4006381333931", Length: 13, MeanDelay: "4ms", Source: "evdev", CapturedAt: time.Unix(1700000000, 0).UTC()},
	}}
	_, client := startTestServer(t, h)

	scans, err := client.Recent(1)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "5901234123457", scans[0].Code)

	scans, err = client.Recent(0)
	require.NoError(t, err)
	assert.Len(t, scans, 2)
}

func TestUnknownMethod(t *testing.T) {
	srv, _ := startTestServer(t, &fakeHandler{})
	resp := srv.dispatch(&Request{Method: "selfdestruct"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "unknown method")
}

func TestVersionCheck(t *testing.T) {
	srv, _ := startTestServer(t, &fakeHandler{})
	resp := srv.dispatch(&Request{Version: 99, Method: MethodPing})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "unsupported protocol version")
}

func TestDoubleStart(t *testing.T) {
	srv, _ := startTestServer(t, &fakeHandler{})
	err := srv.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStopRemovesSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanwedged.sock")
	srv := NewServer(path, &fakeHandler{}, nil)
	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.Stop())

	// A second start must succeed against the cleaned-up path.
	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.Stop())
}

func TestClientAgainstDeadSocket(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "nope.sock"))
	client.SetTimeout(500 * time.Millisecond)
	require.Error(t, client.Ping())
}
