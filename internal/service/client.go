package service

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/yam-build/yam/internal/logging"
)

// Client drives one BuildRequest against a running service (spec §4.10
// lifecycle: Connect → BuildRequest → (LogRecord)* → BuildResult →
// Disconnect).
type Client struct {
	conn Conn
}

// Dial connects to a service listening on host:port.
func Dial(host string, port int) (*Client, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing service: %w", err)
	}
	return &Client{conn: NewGobConn(conn)}, nil
}

// Build sends req and streams LogRecords to onLog until the terminal
// BuildResult arrives.
func (c *Client) Build(req BuildRequest, onLog func(logging.Record)) (BuildResult, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if err := c.conn.Send(req); err != nil {
		return BuildResult{}, fmt.Errorf("sending build request: %w", err)
	}
	for {
		msg, err := c.conn.Receive()
		if err != nil {
			return BuildResult{}, fmt.Errorf("reading from service: %w", err)
		}
		switch m := msg.(type) {
		case LogRecord:
			if onLog != nil {
				onLog(m.Record)
			}
		case BuildResult:
			return m, nil
		default:
			return BuildResult{}, fmt.Errorf("unexpected message %T from service", msg)
		}
	}
}

// Stop sends a StopBuildRequest for the given build ID.
func (c *Client) Stop(buildID uuid.UUID) error {
	return c.conn.Send(StopBuildRequest{ID: buildID})
}

// Shutdown asks the service to terminate and waits for its acknowledgment.
func (c *Client) Shutdown() error {
	if err := c.conn.Send(ShutdownRequest{}); err != nil {
		return err
	}
	msg, err := c.conn.Receive()
	if err != nil {
		return err
	}
	if _, ok := msg.(ShutdownAck); !ok {
		return fmt.Errorf("expected ShutdownAck, got %T", msg)
	}
	return nil
}

// Close disconnects. Per spec §4.10, a disconnect mid-build triggers a
// StopBuildRequest server-side — the client doesn't need to send one
// explicitly before closing.
func (c *Client) Close() error {
	return c.conn.Close()
}
