// ABOUTME: Tests for the feed server
// ABOUTME: Drives the jam endpoint with a raw WebSocket client over httptest
package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jamsync/jamsync-go/pkg/audio/decode"
	"github.com/jamsync/jamsync-go/pkg/protocol"
)

func TestNewServer_Defaults(t *testing.T) {
	s, err := NewServer(Config{})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	if s.config.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, s.config.Port)
	}
	if bpm, bpi := s.Tempo(); bpm != 120 || bpi != 16 {
		t.Errorf("expected 120/16, got %d/%d", bpm, bpi)
	}
	if len(s.participants) != DefaultUsers {
		t.Errorf("expected %d participants, got %d", DefaultUsers, len(s.participants))
	}
	if s.ServerID() == "" {
		t.Error("expected server ID")
	}
}

func TestNewServer_InvalidTempo(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"bpm low", Config{Bpm: 39}, "bpm 39 out of range [40, 250]"},
		{"bpm high", Config{Bpm: 251}, "bpm 251 out of range [40, 250]"},
		{"bpi low", Config{Bpi: 2}, "bpi 2 out of range [3, 64]"},
		{"bpi high", Config{Bpi: 65}, "bpi 65 out of range [3, 64]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewServer(tt.config)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("NewServer() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewServer_UnsupportedRate(t *testing.T) {
	if _, err := NewServer(Config{SampleRate: 44100}); err == nil {
		t.Error("expected opus to reject 44100Hz")
	}
}

func TestMaskAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.20:53211", "192.168.1.x"},
		{"10.0.0.7", "10.0.0.x"},
		{"[::1]:8080", "::1"},
	}
	for _, tt := range tests {
		if got := maskAddress(tt.in); got != tt.want {
			t.Errorf("maskAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// dial connects a raw client and sends client/hello
func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + protocol.DefaultPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	hello := protocol.Message{Type: protocol.TypeClientHello, Payload: protocol.ClientHello{ClientID: name, Name: name, Version: protocol.ProtocolVersion}}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("failed to send hello: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

// readJSON reads the next text message, failing on binary frames
func readJSON(t *testing.T, conn *websocket.Conn, wantType string, into interface{}) {
	t.Helper()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed waiting for %s: %v", wantType, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad json: %v", err)
		}
		if msg.Type != wantType {
			continue
		}
		if err := json.Unmarshal(msg.Payload, into); err != nil {
			t.Fatalf("bad %s payload: %v", wantType, err)
		}
		return
	}
}

func TestServer_Session(t *testing.T) {
	s, err := NewServer(Config{Name: "Test Feed", Topic: "drone", Bpm: 240, Bpi: 4, Bot: true})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Stop()

	conn := dial(t, srv, "alice")

	// Handshake order: hello, then config
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	var first envelope
	json.Unmarshal(data, &first)
	if first.Type != protocol.TypeServerHello {
		t.Fatalf("first message = %s, want server/hello", first.Type)
	}
	var hello protocol.ServerHello
	json.Unmarshal(first.Payload, &hello)
	if hello.Name != "Test Feed" || hello.Topic != "drone" || hello.ServerID != s.ServerID() {
		t.Errorf("hello = %+v", hello)
	}
	if hello.Format != nil {
		t.Errorf("opus session announced format %+v", *hello.Format)
	}

	var config protocol.ServerConfig
	readJSON(t, conn, protocol.TypeServerConfig, &config)
	if config.Bpm != 240 || config.Bpi != 4 {
		t.Errorf("config = %+v", config)
	}

	var users protocol.ServerUsers
	readJSON(t, conn, protocol.TypeServerUsers, &users)
	names := make([]string, 0, len(users.Users))
	for _, u := range users.Users {
		names = append(names, u.Name)
	}
	if got := strings.Join(names, ","); got != "tone1,tone2,ninbot,alice" {
		t.Errorf("users = %s", got)
	}
	if len(users.Users[0].Channels) != 1 || users.Users[3].Address != "127.0.0.x" {
		t.Errorf("users = %+v", users.Users)
	}

	go s.Run()

	seen := map[string]bool{}
	for len(seen) < 2 {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read interval: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		m, err := protocol.DecodeInterval(data)
		if err != nil {
			t.Fatalf("DecodeInterval() error = %v", err)
		}
		codec, err := decode.Sniff(m.Data)
		if err != nil || codec != "opus" {
			t.Errorf("interval from %s sniffed as %q (%v)", m.User, codec, err)
		}
		seen[m.User] = true
	}
	if !seen["tone1@127.0.0.x"] || !seen["tone2@127.0.0.x"] {
		t.Errorf("intervals from %v", seen)
	}

	if err := s.SetTempo(100, 8); err != nil {
		t.Fatalf("SetTempo() error = %v", err)
	}
	readJSON(t, conn, protocol.TypeServerConfig, &config)
	if config.Bpm != 100 || config.Bpi != 8 {
		t.Errorf("config after SetTempo = %+v", config)
	}
	if err := s.SetTempo(300, 8); err == nil {
		t.Error("SetTempo(300) accepted")
	}

	goodbye := protocol.Message{Type: protocol.TypeClientGoodbye, Payload: protocol.ClientGoodbye{Reason: "user_request"}}
	if err := conn.WriteJSON(goodbye); err != nil {
		t.Fatalf("send goodbye: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(s.Clients()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after goodbye")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_PCMSession(t *testing.T) {
	s, err := NewServer(Config{Bpm: 240, Bpi: 4, Users: 1, Codec: "pcm"})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Stop()

	conn := dial(t, srv, "alice")
	var hello protocol.ServerHello
	readJSON(t, conn, protocol.TypeServerHello, &hello)
	want := protocol.IntervalFormat{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
	if hello.Format == nil || *hello.Format != want {
		t.Fatalf("hello format = %+v, want %+v", hello.Format, want)
	}

	go s.Run()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read interval: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		m, err := protocol.DecodeInterval(data)
		if err != nil {
			t.Fatalf("DecodeInterval() error = %v", err)
		}
		// One second of 16-bit stereo at 48kHz
		if len(m.Data) != 48000*2*2 {
			t.Errorf("pcm interval is %d bytes, want %d", len(m.Data), 48000*2*2)
		}
		return
	}
}

func TestNewServer_UnsupportedCodec(t *testing.T) {
	_, err := NewServer(Config{Codec: "mp3"})
	if err == nil || err.Error() != "unsupported codec: mp3" {
		t.Errorf("NewServer() error = %v, want unsupported codec", err)
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	s, err := NewServer(Config{})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + protocol.DefaultPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(protocol.Message{Type: protocol.TypeClientGoodbye, Payload: protocol.ClientGoodbye{}})
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after wrong first message")
	}
}

func TestServer_SessionFull(t *testing.T) {
	s, err := NewServer(Config{Users: 1, MaxUsers: 2})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Stop()

	first := dial(t, srv, "alice")
	var hello protocol.ServerHello
	readJSON(t, first, protocol.TypeServerHello, &hello)

	second := dial(t, srv, "bob")
	if _, _, err := second.ReadMessage(); err == nil {
		t.Error("expected full session to drop the second client")
	}
}
