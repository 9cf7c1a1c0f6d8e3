// Package tcp provides the TCP transport for the chat server.
package tcp

import (
	"io"
	"net"
)

// Conn adapts a net.Conn to chat.Conn.
type Conn struct {
	conn   net.Conn
	reader io.Reader
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, reader: conn}
}

// NewConnWithReader wraps a net.Conn whose first bytes were already
// consumed into reader, e.g. by protocol detection.
func NewConnWithReader(conn net.Conn, reader io.Reader) *Conn {
	return &Conn{conn: conn, reader: reader}
}

// Read implements chat.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

// Write implements chat.Conn.
func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// CloseWrite implements chat.Conn. It half-closes the TCP stream when the
// underlying connection supports it and falls back to a full close
// otherwise.
func (c *Conn) CloseWrite() error {
	if hc, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return c.conn.Close()
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
