// Package ws provides the WebSocket transport for the chat server, built
// on gobwas/ws. Chat frames travel inside binary WebSocket messages; this
// adapter re-exposes them as the byte stream the chat layer expects.
package ws

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a WebSocket connection to chat.Conn. The zero side is the
// server side; use NewClientConn for dialed connections, since the two
// sides mask and read opposite directions.
type Conn struct {
	conn  net.Conn
	rw    io.ReadWriter
	state ws.State

	mu         sync.Mutex
	readBuffer []byte
}

// NewConn wraps an accepted (server-side) WebSocket connection. rw is the
// stream WebSocket frames are read from and written to; it differs from
// conn when the handshake left buffered bytes behind.
func NewConn(conn net.Conn, rw io.ReadWriter) *Conn {
	return &Conn{conn: conn, rw: rw, state: ws.StateServerSide}
}

// NewClientConn wraps a dialed (client-side) WebSocket connection.
func NewClientConn(conn net.Conn, rw io.ReadWriter) *Conn {
	return &Conn{conn: conn, rw: rw, state: ws.StateClientSide}
}

// NewDialedConn wraps a connection returned by ws.Dial. br holds bytes
// buffered during the handshake and may be nil.
func NewDialedConn(conn net.Conn, br *bufio.Reader) *Conn {
	var rw io.ReadWriter = conn
	if br != nil {
		rw = struct {
			io.Reader
			io.Writer
		}{br, conn}
	}
	return NewClientConn(conn, rw)
}

// Read implements chat.Conn. It returns bytes from the current binary
// message, reading the next one once the buffer is drained.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.readBuffer) == 0 {
		data, _, err := wsutil.ReadData(c.rw, c.state)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.readBuffer = data
	}

	n := copy(p, c.readBuffer)
	c.readBuffer = c.readBuffer[n:]
	return n, nil
}

// Write implements chat.Conn. Each call sends one binary message.
func (c *Conn) Write(p []byte) (int, error) {
	if err := wsutil.WriteMessage(c.rw, c.state, ws.OpBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CloseWrite implements chat.Conn. The WebSocket equivalent of a
// half-close is a close frame; the TCP connection stays open for the
// peer's close reply.
func (c *Conn) CloseWrite() error {
	frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	if c.state.ClientSide() {
		frame = ws.MaskFrameInPlace(frame)
	}
	return ws.WriteFrame(c.rw, frame)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	if c.state.ClientSide() {
		frame = ws.MaskFrameInPlace(frame)
	}
	_ = ws.WriteFrame(c.rw, frame)
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
