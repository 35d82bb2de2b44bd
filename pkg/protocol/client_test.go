// ABOUTME: Tests for the protocol WebSocket client
// ABOUTME: Runs the handshake and message routing against an httptest server
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// fakeServer completes the handshake and then runs script on the connection
func fakeServer(t *testing.T, hello Message, script func(conn *websocket.Conn)) (*httptest.Server, chan ClientHello) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	hellos := make(chan ClientHello, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var ch ClientHello
		json.Unmarshal(msg.Payload, &ch)
		hellos <- ch

		if err := conn.WriteJSON(hello); err != nil {
			return
		}
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, hellos
}

func addr(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestClient_HandshakeAndRouting(t *testing.T) {
	id := uuid.New()
	done := make(chan struct{})

	srv, hellos := fakeServer(t,
		Message{Type: TypeServerHello, Payload: ServerHello{ServerID: "s1", Name: "Test Jam", Version: 1, MaxUsers: 4}},
		func(conn *websocket.Conn) {
			conn.WriteJSON(Message{Type: TypeServerConfig, Payload: ServerConfig{Bpm: 100, Bpi: 8}})
			conn.WriteJSON(Message{Type: TypeServerUsers, Payload: ServerUsers{Users: []UserInfo{{Name: "bob", Address: "1.2.3.x"}}}})
			conn.WriteJSON(Message{Type: TypeServerTopic, Payload: ServerTopic{Topic: "funk"}})
			frame, _ := EncodeInterval(IntervalMessage{User: "bob@1.2.3.x", Channel: 0, ID: id, Data: []byte{1, 2, 3}})
			conn.WriteMessage(websocket.BinaryMessage, frame)

			var goodbye inbound
			conn.ReadJSON(&goodbye)
			if goodbye.Type == TypeClientGoodbye {
				close(done)
			}
		})

	client := NewClient(Config{ServerAddr: addr(srv), ClientID: "c1", Name: "alice"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ch := <-hellos
	if ch.ClientID != "c1" || ch.Name != "alice" || ch.Version != ProtocolVersion {
		t.Errorf("client/hello = %+v", ch)
	}
	if got := client.Hello(); got.ServerID != "s1" || got.MaxUsers != 4 {
		t.Errorf("Hello() = %+v", got)
	}

	select {
	case cfg := <-client.Config:
		if cfg.Bpm != 100 || cfg.Bpi != 8 {
			t.Errorf("config = %+v", cfg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for config")
	}

	select {
	case users := <-client.Users:
		if len(users.Users) != 1 || users.Users[0].Name != "bob" {
			t.Errorf("users = %+v", users)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for users")
	}

	select {
	case topic := <-client.Topic:
		if topic.Topic != "funk" {
			t.Errorf("topic = %+v", topic)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for topic")
	}

	select {
	case m := <-client.Intervals:
		if m.ID != id || m.User != "bob@1.2.3.x" || len(m.Data) != 3 {
			t.Errorf("interval = %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for interval")
	}

	if err := client.SendGoodbye("user_request"); err != nil {
		t.Fatalf("SendGoodbye() error = %v", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("server never saw client/goodbye")
	}
}

func TestClient_RejectsWrongHello(t *testing.T) {
	srv, _ := fakeServer(t, Message{Type: TypeServerConfig, Payload: ServerConfig{Bpm: 120, Bpi: 16}}, func(*websocket.Conn) {})

	client := NewClient(Config{ServerAddr: addr(srv), Name: "alice"})
	err := client.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "expected server/hello, got server/config") {
		t.Errorf("Connect() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after failed handshake")
	}
}

func TestClient_DoneAfterServerCloses(t *testing.T) {
	srv, _ := fakeServer(t, Message{Type: TypeServerHello, Payload: ServerHello{ServerID: "s"}}, func(*websocket.Conn) {})

	client := NewClient(Config{ServerAddr: addr(srv)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done() not closed after server hung up")
	}

	if err := client.SendGoodbye("shutdown"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendGoodbye() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_DialFailure(t *testing.T) {
	client := NewClient(Config{ServerAddr: "127.0.0.1:1"})
	if err := client.Connect(context.Background()); err == nil {
		t.Error("Connect() to closed port succeeded")
	}
}
