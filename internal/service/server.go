package service

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/yam-build/yam/internal/logging"
	"github.com/yam-build/yam/internal/oninterrupt"
)

// Runner executes one build to completion, streaming log records through
// emit as it progresses, honoring stop (closed when a StopBuildRequest or
// a disconnect arrives) and returning the terminal result.
type Runner interface {
	Run(req BuildRequest, stop <-chan struct{}, emit func(logging.Record)) BuildResult
}

// Server accepts a single client connection at a time over TCP (spec
// §4.10: "a single client at a time connects over a stream") and drives
// the Connect → BuildRequest → (LogRecord)* → BuildResult → Disconnect
// lifecycle.
type Server struct {
	runner   Runner
	listener net.Listener

	mu       sync.Mutex
	shutdown chan struct{}
}

// Listen opens a TCP listener on an OS-assigned port and returns a Server
// bound to it; the caller is responsible for persisting the port via
// WritePortRegistry.
func Listen(runner Runner) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listening: %w", err)
	}
	return &Server{runner: runner, listener: ln, shutdown: make(chan struct{})}, nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections until Shutdown is called or the listener
// errors. Exactly one client is served at a time; a second connection
// attempt while one is active is rejected immediately.
func (s *Server) Serve() error {
	var active sync.Mutex
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				return err
			}
		}
		go func(c net.Conn) {
			if !active.TryLock() {
				c.Close()
				return
			}
			defer active.Unlock()
			s.handle(NewGobConn(c))
		}(conn)
	}
}

// Shutdown stops Serve from accepting further connections.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	s.listener.Close()
}

func (s *Server) handle(conn Conn) {
	defer conn.Close()

	msg, err := conn.Receive()
	if err != nil {
		return
	}

	switch req := msg.(type) {
	case BuildRequest:
		s.handleBuild(conn, req)
	case ShutdownRequest:
		conn.Send(ShutdownAck{})
		s.Shutdown()
	default:
		// an unexpected first message: nothing to do but drop the
		// connection, per spec §4.10's fixed message-contract.
	}
}

func (s *Server) handleBuild(conn Conn, req BuildRequest) {
	start := time.Now()
	stop := make(chan struct{})
	var stopOnce sync.Once
	closeStop := func() { stopOnce.Do(func() { close(stop) }) }

	// A SIGINT during this build behaves like a StopBuildRequest (spec
	// §4.10, Scenario 6; SPEC_FULL.md §4.12).
	unregister := oninterrupt.RegisterScopeRoot(cancelFunc(closeStop))
	defer unregister()

	// A disconnect or an explicit StopBuildRequest received while the
	// build runs also triggers stop; watch the connection concurrently.
	go func() {
		for {
			msg, err := conn.Receive()
			if err != nil {
				closeStop()
				return
			}
			if sr, ok := msg.(StopBuildRequest); ok && sr.ID == req.ID {
				closeStop()
				return
			}
		}
	}()

	result := s.runner.Run(req, stop, func(rec logging.Record) {
		conn.Send(LogRecord{BuildID: req.ID, Record: rec})
	})
	result.BuildID = req.ID
	result.Duration = time.Since(start)
	conn.Send(result)
}

// cancelFunc adapts a close-channel func to oninterrupt.Cancelable.
type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

// ServiceMain is the full lifecycle cmd/yamd drives: bind a port, persist
// it to the registry, serve until shutdown, then clean up the registry.
func ServiceMain(homeDir string, runner Runner) error {
	srv, err := Listen(runner)
	if err != nil {
		return err
	}
	if err := WritePortRegistry(homeDir, os.Getpid(), srv.Port()); err != nil {
		return fmt.Errorf("writing port registry: %w", err)
	}
	defer RemovePortRegistry(homeDir)

	oninterrupt.Register(func() { srv.Shutdown() })

	return srv.Serve()
}
