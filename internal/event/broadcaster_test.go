package event

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNopBroadcasterDiscardsEverything(t *testing.T) {
	var b Broadcaster = NopBroadcaster{}
	b.BroadcastAttempt(AttemptEvent{AccountEmail: "a@x.com"})
	b.BroadcastRateLimit(RateLimitEvent{AccountEmail: "a@x.com"})
	b.BroadcastLog("hello")
	b.BroadcastMessage("custom", map[string]int{"x": 1})
}

func TestWSBroadcasterDeliversToRegisteredClient(t *testing.T) {
	b := NewWSBroadcaster()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		unregister := b.Register(conn)
		defer unregister()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial test server: %v", err)
	}
	defer clientConn.Close()

	// Give the server goroutine a moment to register the connection before
	// broadcasting, since Register happens asynchronously relative to Dial.
	time.Sleep(50 * time.Millisecond)

	b.BroadcastAttempt(AttemptEvent{AccountEmail: "a@x.com", Model: "m", StatusCode: 200})

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]interface{}
	if err := clientConn.ReadJSON(&got); err != nil {
		t.Fatalf("expected to receive the broadcast attempt event: %v", err)
	}
	if got["type"] != "attempt" {
		t.Fatalf("expected envelope type 'attempt', got %+v", got)
	}
}

func TestWSBroadcasterUnregisterStopsDelivery(t *testing.T) {
	b := NewWSBroadcaster()

	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		unregister := b.Register(conn)
		close(registered)
		unregister()
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial test server: %v", err)
	}
	defer clientConn.Close()

	<-registered
	time.Sleep(50 * time.Millisecond)

	b.mu.RLock()
	n := len(b.clients)
	b.mu.RUnlock()
	if n != 0 {
		t.Fatalf("expected 0 clients after unregister, got %d", n)
	}
}
