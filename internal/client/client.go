// Package client implements a connecting chat client for both transports.
package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/gobwas/ws"

	wstransport "github.com/omochice/chat-relay/internal/transport/ws"
	"github.com/omochice/chat-relay/pkg/protocol"
)

// Client connects to a chat relay, authenticates, and exchanges payloads.
type Client struct {
	address  string
	username string
	dialWS   bool

	mu   sync.RWMutex
	conn io.ReadWriteCloser

	messages  chan protocol.Payload
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithWebSocket dials the server over WebSocket instead of raw TCP.
func WithWebSocket() Option {
	return func(c *Client) {
		c.dialWS = true
	}
}

// New creates a new Client instance.
func New(address, username string, opts ...Option) *Client {
	c := &Client{
		address:  address,
		username: username,
		messages: make(chan protocol.Payload, 10),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a connection to the server and starts receiving.
func (c *Client) Connect() error {
	var conn io.ReadWriteCloser
	if c.dialWS {
		wsConn, br, _, err := ws.Dial(context.Background(), "ws://"+c.address+"/")
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		conn = wstransport.NewDialedConn(wsConn, br)
	} else {
		tcpConn, err := net.Dial("tcp", c.address)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		conn = tcpConn
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveLoop()

	return nil
}

// Disconnect closes the connection to the server.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Authenticate sends the auth request for the client's username. The
// server answers with a srv notice; a rejection also closes the
// connection from the server side.
func (c *Client) Authenticate(pass string) error {
	return c.send(protocol.Payload{Type: protocol.TypeAuth, User: c.username, Pass: pass})
}

// Send sends a broadcast chat message.
func (c *Client) Send(text string) error {
	return c.send(protocol.Payload{Type: protocol.TypeMsg, User: c.username, Text: text})
}

// SendPrivate sends a directed chat message to the named participant.
func (c *Client) SendPrivate(to, text string) error {
	return c.send(protocol.Payload{Type: protocol.TypePrv, User: c.username, To: to, Text: text})
}

// Messages returns the channel of received payloads. It is closed when
// the connection ends.
func (c *Client) Messages() <-chan protocol.Payload {
	return c.messages
}

// send packs and writes one payload. Oversize payloads are rejected here,
// before anything reaches the wire.
func (c *Client) send(p protocol.Payload) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected to server")
	}

	frame, err := protocol.Pack(p)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// receiveLoop reads frames until the connection ends, forwarding decoded
// payloads on the messages channel.
func (c *Client) receiveLoop() {
	defer c.wg.Done()
	defer close(c.messages)

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		body, err := protocol.ReadFrame(conn)
		if err != nil {
			select {
			case <-c.done:
			default:
				if err != io.EOF {
					log.Printf("error reading from server: %v", err)
				}
			}
			return
		}

		var p protocol.Payload
		if err := p.Unmarshal(body); err != nil {
			log.Printf("failed to decode payload: %v", err)
			return
		}

		select {
		case c.messages <- p:
		case <-c.done:
			return
		}
	}
}
