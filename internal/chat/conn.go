// Package chat provides the core chat domain logic shared by all transports:
// the room registry and the per-connection session state machine.
package chat

import "io"

// Conn abstracts a reliable, ordered, byte-oriented duplex stream.
// This interface isolates transport details (TCP, WebSocket) from chat logic.
type Conn interface {
	// Reader and Writer carry raw frame bytes. Reads and writes may block
	// until the underlying transport completes them.
	io.Reader
	io.Writer

	// CloseWrite signals no-more-data to the peer while leaving the read
	// side open. Used when the server unilaterally disconnects a client.
	CloseWrite() error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
