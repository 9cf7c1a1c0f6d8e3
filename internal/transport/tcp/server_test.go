package tcp_test

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omochice/chat-relay/internal/transport/tcp"
)

func startServer(t *testing.T, handler tcp.Handler) *tcp.Server {
	t.Helper()
	srv := tcp.New("127.0.0.1:0", handler)
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

func TestServer_HandlesConnections(t *testing.T) {
	var handled atomic.Int32
	srv := startServer(t, func(conn net.Conn) {
		handled.Add(1)
		conn.Close()
	})

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", srv.Addr())
		if err != nil {
			t.Fatalf("failed to dial: %v", err)
		}
		conn.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for handled.Load() != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("handled %d connections, want 3", handled.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_Stop_RefusesNewConnections(t *testing.T) {
	srv := startServer(t, func(conn net.Conn) {
		conn.Close()
	})
	addr := srv.Addr()

	srv.Stop()

	if _, err := net.Dial("tcp", addr); err == nil {
		t.Error("Dial() succeeded after Stop")
	}
}
