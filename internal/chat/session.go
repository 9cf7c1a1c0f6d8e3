package chat

import (
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/omochice/chat-relay/pkg/protocol"
)

// SessionState tracks where a session is in its lifecycle. The only
// transitions are Unauthenticated -> Authenticated and any state -> Closed.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	StateClosed
)

// String returns the string representation of SessionState.
func (st SessionState) String() string {
	switch st {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMessageLimit rate-limits inbound messages on the session. A message
// rejected by the limiter is dropped after a single srv notice to the
// sender.
func WithMessageLimit(limit rate.Limit, burst int) SessionOption {
	return func(s *Session) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// Session owns one connection: a read pipeline that decodes frames and
// dispatches payloads by authentication state, and a write pipeline that
// flushes an explicit FIFO queue of outbound frames. A session registers
// itself in the shared Room on successful authentication and deregisters
// on teardown.
type Session struct {
	id      string
	conn    Conn
	room    *Room
	creds   CredentialStore
	limiter *rate.Limiter

	mu       sync.Mutex
	state    SessionState
	user     string
	queue    [][]byte
	draining bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession creates a session bound to conn and the shared room. The room
// must outlive the session; it is owned by the server, not by sessions.
func NewSession(conn Conn, room *Room, creds CredentialStore, opts ...SessionOption) *Session {
	s := &Session{
		id:    uuid.NewString(),
		conn:  conn,
		room:  room,
		creds: creds,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the authenticated identity, or "" before authentication.
func (s *Session) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Run drives the session until its connection closes. It blocks; callers
// run one goroutine per session.
func (s *Session) Run() {
	log.Printf("session %s: connected from %s", s.id, s.conn.RemoteAddr())
	s.wg.Add(1)
	go s.writeLoop()
	s.readLoop()
	s.wg.Wait()
	log.Printf("session %s: closed", s.id)
}

// Deliver implements Participant. It packs the payload and appends it to
// the outbound queue without blocking; the write loop flushes the queue in
// strict FIFO order. Payloads delivered after the session started closing
// are discarded.
func (s *Session) Deliver(p protocol.Payload) {
	frame, err := protocol.Pack(p)
	if err != nil {
		log.Printf("session %s: failed to pack payload: %v", s.id, err)
		return
	}

	s.mu.Lock()
	if s.state == StateClosed || s.draining {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, frame)
	s.mu.Unlock()

	s.signalWrite()
}

func (s *Session) signalWrite() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// readLoop is the read pipeline: header, body, payload decode, dispatch.
// Framing errors, payload parse errors, and I/O errors all tear the
// connection down.
func (s *Session) readLoop() {
	header := make([]byte, protocol.HeaderLength)
	for {
		if _, err := io.ReadFull(s.conn, header); err != nil {
			if err != io.EOF {
				log.Printf("session %s: read error: %v", s.id, err)
			}
			s.teardown()
			return
		}

		length, err := protocol.DecodeHeader(header)
		if err != nil {
			log.Printf("session %s: %v", s.id, err)
			s.teardown()
			return
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(s.conn, body); err != nil {
			log.Printf("session %s: read error: %v", s.id, err)
			s.teardown()
			return
		}

		var p protocol.Payload
		if err := p.Unmarshal(body); err != nil {
			log.Printf("session %s: %v", s.id, err)
			s.teardown()
			return
		}

		s.dispatch(p)
	}
}

// writeLoop is the write pipeline: it flushes the FIFO queue one frame at
// a time. A write failure tears the session down; when the session is
// draining, an emptied queue triggers the graceful half-close instead.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				draining := s.draining
				s.mu.Unlock()
				if draining {
					if err := s.conn.CloseWrite(); err != nil {
						s.teardown()
					}
					return
				}
				break
			}
			frame := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			if _, err := s.conn.Write(frame); err != nil {
				log.Printf("session %s: write error: %v", s.id, err)
				s.teardown()
				return
			}
		}
	}
}

func (s *Session) dispatch(p protocol.Payload) {
	s.mu.Lock()
	state := s.state
	draining := s.draining
	s.mu.Unlock()

	if state == StateClosed || draining {
		return
	}

	switch state {
	case StateUnauthenticated:
		switch p.Type {
		case protocol.TypeAuth:
			s.handleAuth(p)
		case protocol.TypeMsg, protocol.TypePrv:
			s.Deliver(protocol.Notice("Error: please authenticate first"))
		default:
			// Unknown types are ignored without closing the connection.
		}
	case StateAuthenticated:
		switch p.Type {
		case protocol.TypeMsg, protocol.TypePrv:
		default:
			// Unknown types and repeated auth are ignored.
			return
		}
		if s.limiter != nil && !s.limiter.Allow() {
			log.Printf("session %s: inbound message rate limit exceeded", s.id)
			s.Deliver(protocol.Notice("Error: message rate limit exceeded, message dropped"))
			return
		}
		switch p.Type {
		case protocol.TypeMsg:
			s.room.Broadcast(protocol.Payload{Type: protocol.TypeMsg, User: s.User(), Text: p.Text})
		case protocol.TypePrv:
			// A miss on the target name is silently dropped; see Room.DeliverTo.
			s.room.DeliverTo(p.To, s.User(), p.Text)
		}
	}
}

// handleAuth runs the unauthenticated auth exchange: credential check,
// duplicate-name check, then the atomic room claim.
func (s *Session) handleAuth(p protocol.Payload) {
	secret, ok := s.creds.Lookup(p.User)
	if !ok || secret != p.Pass {
		log.Printf("session %s: auth rejected for %q: bad credentials", s.id, p.User)
		s.reject("Error: incorrect user or pass, disconnecting...")
		return
	}
	if s.room.Contains(p.User) {
		log.Printf("session %s: auth rejected for %q: name already in use", s.id, p.User)
		s.reject("Error: name already in use, disconnecting...")
		return
	}

	// The success notice is enqueued before the join so it precedes the
	// history replay in the write queue, matching the protocol's order:
	// notice, then history oldest-first, then live broadcasts.
	s.Deliver(protocol.Notice("Success: logged in"))

	// Identity is visible before the claim so a concurrent teardown
	// deregisters it; Leave on a never-claimed name is a no-op.
	s.mu.Lock()
	s.user = p.User
	s.mu.Unlock()

	if !s.room.Join(p.User, s) {
		// Lost the claim to another session authenticating as the same
		// name between the Contains check and the Join.
		s.mu.Lock()
		s.user = ""
		s.mu.Unlock()
		s.reject("Error: name already in use, disconnecting...")
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		// Torn down while joining; drop the registration we just made.
		s.mu.Unlock()
		s.room.Leave(p.User)
		return
	}
	s.state = StateAuthenticated
	s.mu.Unlock()
	log.Printf("session %s: authenticated as %q", s.id, p.User)
}

// reject notifies the client and starts the graceful disconnect: no new
// outbound payloads are accepted, and once the queue drains the write loop
// half-closes the connection. The read loop keeps running until the peer
// closes, but dispatch ignores anything received while draining.
func (s *Session) reject(notice string) {
	s.Deliver(protocol.Notice(notice))
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.signalWrite()
}

// teardown releases the connection and, if the session was registered,
// removes it from the room. It is idempotent; read and write loops both
// call it on any I/O or protocol error.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		user := s.user
		s.mu.Unlock()

		if user != "" {
			s.room.Leave(user)
		}
		s.conn.Close()
		close(s.done)
	})
}
