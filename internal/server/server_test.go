package server_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omochice/chat-relay/internal/chat"
	"github.com/omochice/chat-relay/internal/client"
	"github.com/omochice/chat-relay/internal/server"
	"github.com/omochice/chat-relay/pkg/protocol"
)

func startRelay(t *testing.T) *server.Server {
	t.Helper()
	srv := server.New(server.Config{
		Addr:        "127.0.0.1:0",
		Credentials: chat.StaticCredentials{"alice": "hunter2", "rabbit": "carrot"},
	})
	go func() {
		_ = srv.Start()
	}()
	t.Cleanup(srv.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv
}

func dialRaw(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendPayload(t *testing.T, conn net.Conn, p protocol.Payload) {
	t.Helper()
	frame, err := protocol.Pack(p)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
}

func recvPayload(t *testing.T, conn net.Conn) protocol.Payload {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	var p protocol.Payload
	if err := p.Unmarshal(body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return p
}

func recvFromClient(t *testing.T, c *client.Client) protocol.Payload {
	t.Helper()
	select {
	case p, ok := <-c.Messages():
		if !ok {
			t.Fatal("client message channel closed")
		}
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for payload")
	}
	return protocol.Payload{}
}

func TestServer_RawTCPSession(t *testing.T) {
	srv := startRelay(t)
	conn := dialRaw(t, srv.Addr())

	sendPayload(t, conn, protocol.Payload{Type: protocol.TypeAuth, User: "alice", Pass: "hunter2"})
	if got := recvPayload(t, conn); got.Type != protocol.TypeSrv || got.Text != "Success: logged in" {
		t.Fatalf("auth response = %+v, want success notice", got)
	}

	// Broadcasts come back to the originator.
	sendPayload(t, conn, protocol.Payload{Type: protocol.TypeMsg, Text: "hi"})
	want := protocol.Payload{Type: protocol.TypeMsg, User: "alice", Text: "hi"}
	if got := recvPayload(t, conn); got != want {
		t.Errorf("broadcast = %+v, want %+v", got, want)
	}
}

func TestServer_AuthReject_ClosesConnection(t *testing.T) {
	srv := startRelay(t)
	conn := dialRaw(t, srv.Addr())

	sendPayload(t, conn, protocol.Payload{Type: protocol.TypeAuth, User: "alice", Pass: "wrong"})
	if got := recvPayload(t, conn); got.Type != protocol.TypeSrv {
		t.Fatalf("response = %+v, want srv notice", got)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := protocol.ReadFrame(conn); !errors.Is(err, io.EOF) {
		t.Errorf("read after reject = %v, want io.EOF", err)
	}
}

func TestServer_TCPAndWebSocketShareRoom(t *testing.T) {
	srv := startRelay(t)

	// alice over raw TCP.
	aliceConn := dialRaw(t, srv.Addr())
	sendPayload(t, aliceConn, protocol.Payload{Type: protocol.TypeAuth, User: "alice", Pass: "hunter2"})
	if got := recvPayload(t, aliceConn); got.Text != "Success: logged in" {
		t.Fatalf("alice auth response = %+v", got)
	}

	// rabbit over WebSocket, through the same listener.
	rabbit := client.New(srv.Addr(), "rabbit", client.WithWebSocket())
	if err := rabbit.Connect(); err != nil {
		t.Fatalf("rabbit failed to connect: %v", err)
	}
	defer rabbit.Disconnect()
	if err := rabbit.Authenticate("carrot"); err != nil {
		t.Fatalf("rabbit failed to authenticate: %v", err)
	}
	if got := recvFromClient(t, rabbit); got.Type != protocol.TypeSrv || got.Text != "Success: logged in" {
		t.Fatalf("rabbit auth response = %+v", got)
	}

	// rabbit's replayed history is empty; the next payload is alice's
	// broadcast.
	sendPayload(t, aliceConn, protocol.Payload{Type: protocol.TypeMsg, Text: "hello ws"})

	want := protocol.Payload{Type: protocol.TypeMsg, User: "alice", Text: "hello ws"}
	if got := recvFromClient(t, rabbit); got != want {
		t.Errorf("rabbit received %+v, want %+v", got, want)
	}
	if got := recvPayload(t, aliceConn); got != want {
		t.Errorf("alice received %+v, want %+v", got, want)
	}
}

func TestServer_IndependentRoomsPerInstance(t *testing.T) {
	srvA := startRelay(t)
	srvB := startRelay(t)

	connA := dialRaw(t, srvA.Addr())
	sendPayload(t, connA, protocol.Payload{Type: protocol.TypeAuth, User: "alice", Pass: "hunter2"})
	if got := recvPayload(t, connA); got.Text != "Success: logged in" {
		t.Fatalf("auth response = %+v", got)
	}

	// The same name is free on the other instance.
	connB := dialRaw(t, srvB.Addr())
	sendPayload(t, connB, protocol.Payload{Type: protocol.TypeAuth, User: "alice", Pass: "hunter2"})
	if got := recvPayload(t, connB); got.Text != "Success: logged in" {
		t.Fatalf("auth response on second instance = %+v", got)
	}

	// A broadcast on one instance never reaches the other.
	sendPayload(t, connA, protocol.Payload{Type: protocol.TypeMsg, Text: "only room A"})
	if got := recvPayload(t, connA); got.Text != "only room A" {
		t.Fatalf("received %+v", got)
	}
	if got := len(srvB.Room().History()); got != 0 {
		t.Errorf("second instance history length = %d, want 0", got)
	}
}
