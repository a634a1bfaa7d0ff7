package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client talks to a running scanwedged daemon over its control socket.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient creates a Client for the given socket path.
func NewClient(path string) *Client {
	return &Client{path: path, timeout: 5 * time.Second}
}

// SetTimeout adjusts the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *Client) roundTrip(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	req.Version = ProtocolVersion
	line, err := marshalLine(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(line); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return nil, fmt.Errorf("connection closed before response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// Ping checks that the daemon is reachable.
func (c *Client) Ping() error {
	_, err := c.roundTrip(&Request{Method: MethodPing})
	return err
}

// Status fetches the daemon's current state.
func (c *Client) Status() (*StatusReply, error) {
	resp, err := c.roundTrip(&Request{Method: MethodStatus})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, fmt.Errorf("daemon returned empty status")
	}
	return resp.Status, nil
}

// Reset asks the daemon to discard its buffered keystrokes.
func (c *Client) Reset() error {
	_, err := c.roundTrip(&Request{Method: MethodReset})
	return err
}

// Recent fetches the newest accepted scans.
func (c *Client) Recent(n int) ([]ScanReply, error) {
	resp, err := c.roundTrip(&Request{Method: MethodRecent, Count: n})
	if err != nil {
		return nil, err
	}
	return resp.Scans, nil
}
