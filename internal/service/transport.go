package service

import (
	"bufio"
	"encoding/gob"
	"net"
)

// Conn is the abstract bidirectional message stream the core's server/client
// logic runs over. Wire framing and serialization are explicitly outside
// the core's concern (spec §1); GobConn below is one concrete
// implementation, not a mandated one.
type Conn interface {
	Send(v interface{}) error
	Receive() (interface{}, error)
	Close() error
}

// GobConn streams gob-encoded values over a net.Conn. It's registered
// with every message type this package defines so a single Receive can
// decode into an interface{} and the caller type-switches on the result.
type GobConn struct {
	conn net.Conn
	enc  *gob.Encoder
	dec  *gob.Decoder
}

func init() {
	gob.Register(BuildRequest{})
	gob.Register(StopBuildRequest{})
	gob.Register(ShutdownRequest{})
	gob.Register(LogRecord{})
	gob.Register(BuildResult{})
	gob.Register(ShutdownAck{})
}

func NewGobConn(c net.Conn) *GobConn {
	return &GobConn{
		conn: c,
		enc:  gob.NewEncoder(c),
		dec:  gob.NewDecoder(bufio.NewReader(c)),
	}
}

// envelope carries the payload so Receive can decode into an interface{}
// without the caller knowing the type ahead of time.
type envelope struct {
	Payload interface{}
}

func (g *GobConn) Send(v interface{}) error {
	return g.enc.Encode(envelope{Payload: v})
}

func (g *GobConn) Receive() (interface{}, error) {
	var env envelope
	if err := g.dec.Decode(&env); err != nil {
		return nil, err
	}
	return env.Payload, nil
}

func (g *GobConn) Close() error {
	return g.conn.Close()
}
