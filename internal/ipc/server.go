package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scanwedged/internal/logging"
)

// Handler answers IPC requests. The daemon provides the implementation;
// tests can substitute their own.
type Handler interface {
	// Status reports the current daemon state.
	Status() (*StatusReply, error)

	// Reset discards the detector's buffered keystrokes.
	Reset() error

	// Recent returns the newest accepted scans, most recent first.
	Recent(n int) ([]ScanReply, error)
}

// Server serves the control protocol on a unix domain socket.
type Server struct {
	path    string
	handler Handler
	logger  *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// ErrAlreadyRunning is returned when Start is called twice.
var ErrAlreadyRunning = errors.New("ipc: server already running")

// NewServer creates a Server for the given socket path.
func NewServer(path string, handler Handler, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		path:    path,
		handler: handler,
		logger:  logger.WithComponent("ipc"),
	}
}

// Start creates the socket and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	// Remove a stale socket from a previous run.
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.listener = ln
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	s.logger.Info("listening", "socket", s.path)
	return nil
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() error {
	s.mu.Lock()
	ln := s.listener
	cancel := s.cancel
	s.listener = nil
	s.cancel = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}

	cancel()
	err := ln.Close()
	s.wg.Wait()
	os.Remove(s.path)
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(30 * time.Second))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.writeResponse(conn, errorResponse("malformed request"))
			return
		}

		resp := s.dispatch(&req)
		if err := s.writeResponse(conn, resp); err != nil {
			s.logger.Warn("write response failed", "error", err)
			return
		}
		conn.SetDeadline(time.Now().Add(30 * time.Second))
	}
}

func (s *Server) dispatch(req *Request) *Response {
	if req.Version != 0 && req.Version != ProtocolVersion {
		return errorResponse(fmt.Sprintf("unsupported protocol version %d", req.Version))
	}

	switch req.Method {
	case MethodPing:
		return &Response{Version: ProtocolVersion, OK: true}

	case MethodStatus:
		status, err := s.handler.Status()
		if err != nil {
			return errorResponse(err.Error())
		}
		return &Response{Version: ProtocolVersion, OK: true, Status: status}

	case MethodReset:
		if err := s.handler.Reset(); err != nil {
			return errorResponse(err.Error())
		}
		return &Response{Version: ProtocolVersion, OK: true}

	case MethodRecent:
		scans, err := s.handler.Recent(req.Count)
		if err != nil {
			return errorResponse(err.Error())
		}
		return &Response{Version: ProtocolVersion, OK: true, Scans: scans}

	default:
		return errorResponse(fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) writeResponse(conn net.Conn, resp *Response) error {
	line, err := marshalLine(resp)
	if err != nil {
		return err
	}
	_, err = conn.Write(line)
	return err
}
