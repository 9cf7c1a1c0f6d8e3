// Package server wires the chat room, credential store, and transports
// into a listening chat relay.
package server

import (
	"bufio"
	"log"
	"net"

	"github.com/gobwas/ws"
	"golang.org/x/time/rate"

	"github.com/omochice/chat-relay/internal/chat"
	"github.com/omochice/chat-relay/internal/transport/tcp"
	wstransport "github.com/omochice/chat-relay/internal/transport/ws"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Credentials authorizes participants at authentication time.
	Credentials chat.CredentialStore

	// MessageRate limits inbound chat messages per session. Zero disables
	// the limit.
	MessageRate rate.Limit

	// MessageBurst is the burst size used when MessageRate is set.
	MessageBurst int
}

// Server owns one listener and the Room shared by all its sessions. The
// Room lives at the top of the hierarchy so it outlives every session;
// sessions hold it only as a borrowed handle. One port serves both raw
// TCP and WebSocket clients: the first bytes of each connection select
// the transport.
type Server struct {
	cfg      Config
	room     *chat.Room
	listener *tcp.Server
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	s := &Server{
		cfg:  cfg,
		room: chat.NewRoom(),
	}
	s.listener = tcp.New(cfg.Addr, s.handle)
	return s
}

// Start starts accepting connections. It blocks until Stop is called or
// the listener fails.
func (s *Server) Start() error {
	return s.listener.Start()
}

// Stop stops the server and waits for in-flight sessions to finish.
func (s *Server) Stop() {
	s.listener.Stop()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr()
}

// Room returns the server's shared room.
func (s *Server) Room() *chat.Room {
	return s.room
}

// handle detects the connection's transport and runs a session over it.
func (s *Server) handle(conn net.Conn) {
	reader := bufio.NewReader(conn)

	peek, err := reader.Peek(4)
	if err != nil {
		log.Printf("failed to peek connection from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	var chatConn chat.Conn
	if isHTTPMethod(peek) {
		bc := &bufferedConn{Conn: conn, reader: reader}
		if _, err := ws.Upgrade(bc); err != nil {
			log.Printf("failed to upgrade WebSocket connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			return
		}
		chatConn = wstransport.NewConn(conn, bc)
	} else {
		chatConn = tcp.NewConnWithReader(conn, reader)
	}

	s.runSession(chatConn)
}

func (s *Server) runSession(conn chat.Conn) {
	var opts []chat.SessionOption
	if s.cfg.MessageRate > 0 {
		opts = append(opts, chat.WithMessageLimit(s.cfg.MessageRate, s.cfg.MessageBurst))
	}
	chat.NewSession(conn, s.room, s.cfg.Credentials, opts...).Run()
}

// isHTTPMethod reports whether the peeked bytes start an HTTP request
// line, which means the client is opening a WebSocket. Raw chat frames
// always start with a decimal header.
func isHTTPMethod(peek []byte) bool {
	for _, method := range []string{"GET ", "POST", "PUT ", "HEAD"} {
		if string(peek) == method {
			return true
		}
	}
	return false
}

// bufferedConn replays bytes consumed during protocol detection before
// reading from the connection again.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}
