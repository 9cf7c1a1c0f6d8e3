package tcp

import (
	"fmt"
	"log"
	"net"
	"sync"
)

// Handler serves one accepted connection and returns when it is done.
type Handler func(conn net.Conn)

// Server accepts TCP connections and hands each one to a Handler.
type Server struct {
	address  string
	listener net.Listener
	handler  Handler
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New creates a TCP server that serves connections with handler.
func New(address string, handler Handler) *Server {
	return &Server{
		address: address,
		handler: handler,
		quit:    make(chan struct{}),
	}
}

// Start starts accepting connections. It blocks until Stop is called or
// the listener fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener

	log.Printf("server listening on %s", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				log.Printf("failed to accept connection: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handler(conn)
		}()
	}
}

// Stop stops the server and waits for in-flight handlers to finish.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
