// ABOUTME: Tests for the jam client
// ABOUTME: Unit tests for session wiring plus a live session against the feed server
package jam

import (
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamsync/jamsync-go/internal/cache"
	"github.com/jamsync/jamsync-go/internal/feed"
	"github.com/jamsync/jamsync-go/pkg/audio/decode"
	"github.com/jamsync/jamsync-go/pkg/mixer"
	"github.com/jamsync/jamsync-go/pkg/protocol"
	"github.com/jamsync/jamsync-go/pkg/session"
	"github.com/jamsync/jamsync-go/pkg/track"
)

// errorLog collects OnError reports
type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) add(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) all() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

func newTestClient(t *testing.T, config Config) *Client {
	t.Helper()
	if config.Output == "" {
		config.Output = "null"
	}
	c, err := NewClient(config)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func startFeed(t *testing.T, config feed.Config) (*feed.Server, string) {
	t.Helper()
	s, err := feed.NewServer(config)
	if err != nil {
		t.Fatalf("feed.NewServer() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	go s.Run()
	t.Cleanup(func() {
		s.Stop()
		srv.Close()
	})
	return s, strings.TrimPrefix(srv.URL, "http://")
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := newTestClient(t, Config{ServerAddr: "localhost:2049"})

	if c.config.SampleRate != 48000 {
		t.Errorf("expected SampleRate=48000, got %d", c.config.SampleRate)
	}
	if c.config.BitDepth != 16 {
		t.Errorf("expected BitDepth=16, got %d", c.config.BitDepth)
	}
	if c.config.DeviceInfo.ProductName == "" || c.config.DeviceInfo.SoftwareVersion == "" {
		t.Error("expected default device info")
	}
	if c.Registry() == nil || c.Mixer() == nil {
		t.Fatal("expected registry and mixer")
	}

	status := c.Snapshot()
	if status.Connected || status.Server != "" || len(status.Tracks) != 0 {
		t.Errorf("initial status = %+v", status)
	}
}

func TestNewClient_UnknownOutput(t *testing.T) {
	_, err := NewClient(Config{Output: "alsa"})
	if err == nil || err.Error() != "unknown output backend: alsa" {
		t.Errorf("NewClient() error = %v", err)
	}
}

func TestConnect_InvalidAddress(t *testing.T) {
	c := newTestClient(t, Config{ServerAddr: "no-port"})
	if err := c.Connect(context.Background()); err == nil || !strings.Contains(err.Error(), "invalid server address") {
		t.Errorf("Connect() error = %v", err)
	}

	c = newTestClient(t, Config{ServerAddr: "localhost:jam"})
	if err := c.Connect(context.Background()); err == nil || !strings.Contains(err.Error(), "invalid server port") {
		t.Errorf("Connect() error = %v", err)
	}
}

func TestSetTrackSettings_NotConnected(t *testing.T) {
	c := newTestClient(t, Config{})
	_, err := c.SetTrackSettings(track.Key{User: "bob@1.2.3.x"}, mixer.DefaultSettings())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SetTrackSettings() error = %v, want ErrNotConnected", err)
	}
}

func TestApplyConfig(t *testing.T) {
	var log errorLog
	c := newTestClient(t, Config{OnError: log.add})
	server := c.registry.GetOrCreate("jam.example.com", 2049)

	c.applyConfig(server, protocol.ServerConfig{Bpm: 90, Bpi: 8})
	if bpm, bpi := server.Tempo(); bpm != 90 || bpi != 8 {
		t.Errorf("server tempo = %d/%d, want 90/8", bpm, bpi)
	}

	c.applyConfig(server, protocol.ServerConfig{Bpm: 300, Bpi: 2})
	if bpm, bpi := server.Tempo(); bpm != 90 || bpi != 8 {
		t.Errorf("rejected tempo changed server to %d/%d", bpm, bpi)
	}

	errs := log.all()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if errs[0].Error() != "server bpm 300 rejected: outside [40, 250]" {
		t.Errorf("errs[0] = %v", errs[0])
	}
	if errs[1].Error() != "server bpi 2 rejected: outside [3, 64]" {
		t.Errorf("errs[1] = %v", errs[1])
	}

	// The clock picks the committed tempo up at its next boundary
	clock := c.mixer.Clock()
	clock.Boundary()
	if bpm, bpi := clock.Tempo(); bpm != 90 || bpi != 8 {
		t.Errorf("clock tempo = %d/%d, want 90/8", bpm, bpi)
	}
}

func TestApplyUsers_ReconcilesTracks(t *testing.T) {
	c := newTestClient(t, Config{Name: "alice"})
	server := c.registry.GetOrCreate("jam.example.com", 2049)

	c.applyUsers(server, protocol.ServerUsers{Users: []protocol.UserInfo{
		{Name: "bob", Address: "1.2.3.x", Channels: []protocol.ChannelInfo{{Index: 0, Name: "bass"}, {Index: 1, Name: "keys"}}},
		{Name: "ninbot_", Address: "1.2.3.x", Channels: []protocol.ChannelInfo{{Index: 0}}},
		{Name: "alice", Address: "5.6.7.x"},
	}})

	keys := c.mixer.Keys()
	if len(keys) != 2 || keys[0] != (track.Key{User: "bob@1.2.3.x", Channel: 0}) || keys[1].Channel != 1 {
		t.Fatalf("keys = %v", keys)
	}
	if server.UserCount() != 3 || !server.ContainsBot() {
		t.Errorf("server users = %v, containsBot = %t", server.Users(), server.ContainsBot())
	}

	removed, _ := c.mixer.Stream(track.Key{User: "bob@1.2.3.x", Channel: 1})

	// bob drops a channel, carol joins
	c.applyUsers(server, protocol.ServerUsers{Users: []protocol.UserInfo{
		{Name: "bob", Address: "1.2.3.x", Channels: []protocol.ChannelInfo{{Index: 0, Name: "bass"}}},
		{Name: "carol", Address: "9.9.9.x", Channels: []protocol.ChannelInfo{{Index: 0, Name: "drums"}}},
	}})

	keys = c.mixer.Keys()
	if len(keys) != 2 || keys[1].User != "carol@9.9.9.x" {
		t.Fatalf("keys = %v", keys)
	}
	if removed.Active() {
		t.Error("removed track still active")
	}
	if server.ContainsUser("alice@5.6.7.x") {
		t.Error("alice still a member after leaving")
	}
}

func TestApplyUsers_SeedsCachedSettings(t *testing.T) {
	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer store.Close()

	saved := mixer.Settings{Gain: 0.5, Pan: -2, Boost: 1, Muted: true}
	if err := store.Update(cache.Entry{IP: "1.2.3.4", Name: "bob", Channel: 0, Settings: saved}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	c := newTestClient(t, Config{Cache: store})
	server := c.registry.GetOrCreate("jam.example.com", 2049)
	c.applyUsers(server, protocol.ServerUsers{Users: []protocol.UserInfo{
		{Name: "bob", Address: "1.2.3.x", Channels: []protocol.ChannelInfo{{Index: 0}}},
	}})

	got, ok := c.mixer.Settings(track.Key{User: "bob@1.2.3.x", Channel: 0})
	if !ok || got != saved {
		t.Errorf("settings = %+v, want %+v", got, saved)
	}
}

func TestDeliver_UnknownTrackDropped(t *testing.T) {
	c := newTestClient(t, Config{})
	server := c.registry.GetOrCreate("jam.example.com", 2049)
	conn := protocol.NewClient(protocol.Config{})

	c.deliver(conn, server, protocol.IntervalMessage{User: "ghost@1.1.1.x", Data: []byte{1}})
	if len(c.mixer.Keys()) != 0 {
		t.Error("interval for unknown user created a track")
	}

	// A user list still queued on the connection is applied first
	conn.Users <- protocol.ServerUsers{Users: []protocol.UserInfo{
		{Name: "ghost", Address: "1.1.1.x", Channels: []protocol.ChannelInfo{{Index: 0}}},
	}}
	c.deliver(conn, server, protocol.IntervalMessage{User: "ghost@1.1.1.x", Data: []byte{1}})

	stream, ok := c.mixer.Stream(track.Key{User: "ghost@1.1.1.x"})
	if !ok || stream.Pending() != 1 {
		t.Errorf("expected one pending interval on the new track")
	}
}

func TestClient_LiveSession(t *testing.T) {
	if testing.Short() {
		t.Skip("live session test")
	}

	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer store.Close()

	fs, addr := startFeed(t, feed.Config{Topic: "drone in A", Bpm: 240, Bpi: 4, Users: 2, Bot: true})

	var log errorLog
	c := newTestClient(t, Config{ServerAddr: addr, Name: "alice", Cache: store, OnError: log.add})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v", err)
	}

	waitFor(t, "two tracks", 5*time.Second, func() bool {
		return len(c.Snapshot().Tracks) == 2
	})

	status := c.Snapshot()
	if !status.Connected || status.Topic != "drone in A" || status.Bpm != 240 || status.Bpi != 4 {
		t.Errorf("status = %+v", status)
	}
	if len(status.Users) != 4 || status.ContainsBotOnly {
		t.Errorf("users = %+v", status.Users)
	}

	waitFor(t, "audible tone", 10*time.Second, func() bool {
		for _, tr := range c.Snapshot().Tracks {
			if tr.Playing && tr.Peak > 0.1 {
				return true
			}
		}
		return false
	})

	key := track.Key{User: "tone1@127.0.0.x", Channel: 0}
	applied, err := c.SetTrackSettings(key, mixer.Settings{Gain: 0.5, Pan: 9, Boost: 1})
	if err != nil {
		t.Fatalf("SetTrackSettings() error = %v", err)
	}
	if applied.Pan != 4 {
		t.Errorf("applied pan = %f, want 4", applied.Pan)
	}
	if got := store.Lookup("127.0.0.1", "tone1", 0).Settings; got != applied {
		t.Errorf("cached settings = %+v, want %+v", got, applied)
	}
	if _, err := c.SetTrackSettings(track.Key{User: "nobody"}, mixer.DefaultSettings()); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("SetTrackSettings(unknown) error = %v", err)
	}

	if err := fs.SetTempo(100, 8); err != nil {
		t.Fatalf("SetTempo() error = %v", err)
	}
	waitFor(t, "tempo change", 5*time.Second, func() bool {
		s := c.Snapshot()
		return s.Bpm == 100 && s.Bpi == 8
	})

	fs.Stop()
	waitFor(t, "disconnect", 5*time.Second, func() bool {
		return !c.Snapshot().Connected
	})

	var lost bool
	for _, err := range log.all() {
		if errors.Is(err, ErrDisconnected) {
			lost = true
		}
	}
	if !lost {
		t.Errorf("expected ErrDisconnected, got %v", log.all())
	}
	if len(c.Snapshot().Tracks) != 0 {
		t.Error("tracks left after disconnect")
	}
	for _, s := range c.Registry().Servers() {
		if s.Active() {
			t.Errorf("server %s still active", s.Key())
		}
	}
}

func TestClient_NewDecoderFollowsAnnouncedFormat(t *testing.T) {
	tests := []struct {
		name   string
		format *protocol.IntervalFormat
		want   string
	}{
		{"no format", nil, "auto"},
		{"opus", &protocol.IntervalFormat{Codec: "opus", SampleRate: 48000, Channels: 2}, "auto"},
		{"pcm", &protocol.IntervalFormat{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}, "pcm"},
		{"bad pcm", &protocol.IntervalFormat{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 8}, "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, Config{})
			c.format = tt.format

			var got string
			switch c.newDecoder().(type) {
			case *decode.AutoDecoder:
				got = "auto"
			case *decode.PCMDecoder:
				got = "pcm"
			}
			if got != tt.want {
				t.Errorf("newDecoder() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_LivePCMSession(t *testing.T) {
	if testing.Short() {
		t.Skip("live session test")
	}

	_, addr := startFeed(t, feed.Config{Bpm: 240, Bpi: 4, Users: 1, Codec: "pcm"})

	c := newTestClient(t, Config{ServerAddr: addr, Name: "alice"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	waitFor(t, "audible pcm tone", 10*time.Second, func() bool {
		for _, tr := range c.Snapshot().Tracks {
			if tr.Playing && tr.Peak > 0.1 {
				return true
			}
		}
		return false
	})
}

func TestClient_CloseSendsGoodbye(t *testing.T) {
	fs, addr := startFeed(t, feed.Config{Users: 1})

	c := newTestClient(t, Config{ServerAddr: addr, Name: "alice"})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitFor(t, "registration", 5*time.Second, func() bool { return len(fs.Clients()) == 1 })

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	waitFor(t, "server to drop client", 5*time.Second, func() bool { return len(fs.Clients()) == 0 })

	if c.Snapshot().Connected {
		t.Error("still connected after Close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	server, ok := c.Registry().Lookup("127.0.0.1", portOf(addr))
	if !ok || server.Active() {
		t.Errorf("server after close: ok=%t", ok)
	}
}

func portOf(addr string) int {
	_, port, _ := strings.Cut(addr, ":")
	n, _ := strconv.Atoi(port)
	return n
}

func TestStatus_BotOnlySession(t *testing.T) {
	c := newTestClient(t, Config{})
	server := c.registry.Activate("jam.example.com", 2049)
	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	c.applyUsers(server, protocol.ServerUsers{Users: []protocol.UserInfo{{Name: "ninbot", Address: "1.2.3.x"}}})
	if !c.Snapshot().ContainsBotOnly {
		t.Error("expected bot-only session")
	}
	if session.Key("jam.example.com", 2049) != c.Snapshot().Server {
		t.Errorf("status server = %s", c.Snapshot().Server)
	}
}
