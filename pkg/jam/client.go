// ABOUTME: High-level jam session client
// ABOUTME: Wires protocol, session state, track streams, mixer and output
package jam

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamsync/jamsync-go/internal/cache"
	"github.com/jamsync/jamsync-go/internal/version"
	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/jamsync/jamsync-go/pkg/audio/decode"
	"github.com/jamsync/jamsync-go/pkg/audio/output"
	"github.com/jamsync/jamsync-go/pkg/mixer"
	"github.com/jamsync/jamsync-go/pkg/protocol"
	"github.com/jamsync/jamsync-go/pkg/session"
	"github.com/jamsync/jamsync-go/pkg/track"
)

// Config holds client configuration
type Config struct {
	// ServerAddr is the server address (host:port)
	ServerAddr string

	// Name is the display name announced to the session
	Name string

	// SampleRate is the local render rate (default: 48000)
	SampleRate int

	// BitDepth is the device sample size (default: 16)
	BitDepth int

	// Output selects the backend: malgo, oto or null (default: malgo)
	Output string

	// Cache remembers per-channel settings across sessions (optional)
	Cache *cache.Store

	// Registry holds known servers (default: a new registry)
	Registry *session.Registry

	// DeviceInfo provides device identification
	DeviceInfo protocol.DeviceInfo

	// OnError is called when errors occur
	OnError func(error)
}

// Status is a point-in-time view of the session
type Status struct {
	Server          string
	Connected       bool
	Name            string
	Topic           string
	Bpm             int
	Bpi             int
	Beat            int
	Progress        float64
	Users           []session.User
	ContainsBotOnly bool
	Tracks          []mixer.StripState
	Volume          int
	Muted           bool
}

// Client listens to one jam session at a time
type Client struct {
	config   Config
	registry *session.Registry
	mixer    *mixer.Mixer
	output   output.Output

	mu     sync.Mutex
	conn   *protocol.Client
	server *session.Server
	format *protocol.IntervalFormat
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client with the given configuration
func NewClient(config Config) (*Client, error) {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.BitDepth == 0 {
		config.BitDepth = 16
	}
	if config.Name == "" {
		config.Name = "listener"
	}
	if config.Registry == nil {
		config.Registry = session.NewRegistry()
	}
	if config.DeviceInfo.ProductName == "" {
		config.DeviceInfo.ProductName = version.Product
	}
	if config.DeviceInfo.Manufacturer == "" {
		config.DeviceInfo.Manufacturer = version.Manufacturer
	}
	if config.DeviceInfo.SoftwareVersion == "" {
		config.DeviceInfo.SoftwareVersion = version.Version
	}

	out, ok := output.New(config.Output)
	if !ok {
		return nil, fmt.Errorf("unknown output backend: %s", config.Output)
	}

	return &Client{
		config:   config,
		registry: config.Registry,
		mixer:    mixer.New(config.SampleRate),
		output:   out,
	}, nil
}

// Registry returns the server registry
func (c *Client) Registry() *session.Registry {
	return c.registry
}

// Mixer returns the render mixer
func (c *Client) Mixer() *mixer.Mixer {
	return c.mixer
}

// Connect joins the configured server and starts playback
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	host, portStr, err := net.SplitHostPort(c.config.ServerAddr)
	if err != nil {
		return fmt.Errorf("invalid server address %q: %w", c.config.ServerAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid server port %q: %w", portStr, err)
	}

	conn := protocol.NewClient(protocol.Config{
		ServerAddr: c.config.ServerAddr,
		ClientID:   uuid.New().String(),
		Name:       c.config.Name,
		DeviceInfo: c.config.DeviceInfo,
	})
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	server := c.registry.Activate(host, port)
	hello := conn.Hello()
	server.SetTopic(hello.Topic)
	server.SetMaxUsers(hello.MaxUsers)
	server.SetStreamURL(hello.StreamURL)

	c.mixer.Clock().SetTempo(server.Tempo())
	c.mixer.Clock().Reset()

	if err := c.output.Open(c.config.SampleRate, audio.Channels, c.config.BitDepth, c.mixer); err != nil {
		conn.Close()
		server.SetActive(false)
		return fmt.Errorf("failed to initialize output: %w", err)
	}

	log.Printf("Connected to server: %s (%s)", server.Key(), hello.Name)

	runCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.server = server
	c.format = hello.Format
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, conn, server, c.done)

	return nil
}

// run applies session messages until the connection ends
func (c *Client) run(ctx context.Context, conn *protocol.Client, server *session.Server, done chan struct{}) {
	defer close(done)

	for {
		select {
		case cfg := <-conn.Config:
			c.applyConfig(server, cfg)

		case users := <-conn.Users:
			c.applyUsers(server, users)

		case topic := <-conn.Topic:
			server.SetTopic(topic.Topic)
			log.Printf("Topic: %s", topic.Topic)

		case m := <-conn.Intervals:
			c.deliver(conn, server, m)

		case <-conn.Done():
			c.disconnected(conn, server)
			return

		case <-ctx.Done():
			return
		}
	}
}

// applyConfig commits a tempo announcement. Out-of-range values are
// reported and the current tempo is kept.
func (c *Client) applyConfig(server *session.Server, cfg protocol.ServerConfig) {
	bpm := server.SetBpm(cfg.Bpm)
	if bpm == session.Rejected {
		c.notifyError(fmt.Errorf("server bpm %d rejected: outside [%d, %d]", cfg.Bpm, session.MinBpm, session.MaxBpm))
	}
	bpi := server.SetBpi(cfg.Bpi)
	if bpi == session.Rejected {
		c.notifyError(fmt.Errorf("server bpi %d rejected: outside [%d, %d]", cfg.Bpi, session.MinBpi, session.MaxBpi))
	}

	if bpm == session.Changed || bpi == session.Changed {
		b, i := server.Tempo()
		c.mixer.Clock().SetTempo(b, i)
		log.Printf("Tempo: %d bpm, %d bpi (from next interval)", b, i)
	}
}

// applyUsers refreshes membership and brings the track set in line with
// the channels every user publishes
func (c *Client) applyUsers(server *session.Server, msg protocol.ServerUsers) {
	users := make([]session.User, 0, len(msg.Users))
	for _, u := range msg.Users {
		user := session.User{
			Name:    u.Name,
			Address: u.Address,
			Bot:     u.Bot || session.IsBotName(u.Name),
		}
		for _, ch := range u.Channels {
			user.Channels = append(user.Channels, session.Channel{Index: ch.Index, Name: ch.Name})
		}
		users = append(users, user)
	}

	delta := server.RefreshMembership(users)
	for _, u := range delta.Joined {
		log.Printf("User joined: %s", u.FullName())
	}
	for _, u := range delta.Left {
		log.Printf("User left: %s", u.FullName())
	}

	c.reconcileTracks(users)
}

// reconcileTracks creates a track for every published channel of a
// non-bot user and removes tracks whose channel is gone
func (c *Client) reconcileTracks(users []session.User) {
	want := make(map[track.Key]session.User)
	for _, u := range users {
		if u.Bot || u.Name == c.config.Name {
			continue
		}
		for _, ch := range u.Channels {
			want[track.Key{User: u.FullName(), Channel: ch.Index}] = u
		}
	}

	for _, key := range c.mixer.Keys() {
		if _, ok := want[key]; ok {
			continue
		}
		if stream, ok := c.mixer.Remove(key); ok {
			stream.Deactivate()
			log.Printf("Track removed: %s", key)
		}
	}

	maxFrames := c.config.SampleRate / 10
	for key, u := range want {
		if _, ok := c.mixer.Stream(key); ok {
			continue
		}
		settings := c.lookupSettings(u, key.Channel)
		c.mixer.Add(track.NewStream(key, c.newDecoder(), maxFrames), settings)
		log.Printf("Track added: %s", key)
	}
}

// newDecoder returns a track decoder for the session's intervals. Headerless
// PCM needs the layout from server/hello; everything else is sniffed.
func (c *Client) newDecoder() decode.Decoder {
	c.mu.Lock()
	f := c.format
	c.mu.Unlock()

	if f == nil || f.Codec != "pcm" {
		return decode.NewAuto()
	}
	dec, err := decode.New(audio.Format{Codec: f.Codec, SampleRate: f.SampleRate, Channels: f.Channels, BitDepth: f.BitDepth})
	if err != nil {
		log.Printf("Announced interval format rejected, sniffing instead: %v", err)
		return decode.NewAuto()
	}
	return dec
}

// lookupSettings returns the remembered settings for a channel
func (c *Client) lookupSettings(u session.User, channel uint8) mixer.Settings {
	if c.config.Cache == nil {
		return mixer.DefaultSettings()
	}
	return c.config.Cache.Lookup(u.Address, u.Name, channel).Settings
}

// deliver queues an interval on its track
func (c *Client) deliver(conn *protocol.Client, server *session.Server, m protocol.IntervalMessage) {
	key := track.Key{User: m.User, Channel: m.Channel}
	stream, ok := c.mixer.Stream(key)
	if !ok {
		// A user list sent just before the interval may still be queued
		c.drainUsers(conn, server)
		if stream, ok = c.mixer.Stream(key); !ok {
			return
		}
	}

	stream.Enqueue(track.Interval{ID: m.ID, Data: m.Data, Received: time.Now()})
}

func (c *Client) drainUsers(conn *protocol.Client, server *session.Server) {
	for {
		select {
		case users := <-conn.Users:
			c.applyUsers(server, users)
		default:
			return
		}
	}
}

// disconnected tears down a session the server ended
func (c *Client) disconnected(conn *protocol.Client, server *session.Server) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.cancel()
	c.mu.Unlock()

	c.teardown(server)
	c.notifyError(fmt.Errorf("%w: %s", ErrDisconnected, server.Key()))
}

// teardown stops playback and drops every track
func (c *Client) teardown(server *session.Server) {
	if err := c.output.Close(); err != nil {
		log.Printf("Error closing output: %v", err)
	}

	for _, key := range c.mixer.Keys() {
		if stream, ok := c.mixer.Remove(key); ok {
			stream.Deactivate()
		}
	}
	server.SetActive(false)
}

// SetTrackSettings changes one track's mix settings and remembers them for
// the channel's owner
func (c *Client) SetTrackSettings(key track.Key, settings mixer.Settings) (mixer.Settings, error) {
	c.mu.Lock()
	server := c.server
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return mixer.Settings{}, ErrNotConnected
	}

	applied, ok := c.mixer.SetSettings(key, settings)
	if !ok {
		return mixer.Settings{}, fmt.Errorf("%w: %s", ErrUnknownTrack, key)
	}

	if c.config.Cache != nil {
		if user, ok := server.User(key.User); ok {
			err := c.config.Cache.Update(cache.Entry{
				IP:       user.Address,
				Name:     user.Name,
				Channel:  key.Channel,
				Settings: applied,
			})
			if err != nil {
				return applied, fmt.Errorf("failed to remember settings for %s: %w", key, err)
			}
		}
	}

	return applied, nil
}

// SetVolume sets the master volume (0-100)
func (c *Client) SetVolume(volume int) {
	c.output.SetVolume(volume)
}

// SetMuted sets the master mute
func (c *Client) SetMuted(muted bool) {
	c.output.SetMuted(muted)
}

// Snapshot returns the current session and track state
func (c *Client) Snapshot() Status {
	c.mu.Lock()
	server := c.server
	connected := c.conn != nil
	c.mu.Unlock()

	clock := c.mixer.Clock()
	status := Status{
		Connected: connected,
		Name:      c.config.Name,
		Beat:      clock.Beat(),
		Progress:  clock.Progress(),
		Tracks:    c.mixer.Snapshot(),
		Volume:    c.output.Volume(),
		Muted:     c.output.Muted(),
	}
	status.Bpm, status.Bpi = clock.Tempo()

	if server != nil {
		status.Server = server.Key()
		status.Topic = server.Topic()
		status.Users = server.Users()
		status.ContainsBotOnly = server.ContainsBotOnly()
		status.Bpm, status.Bpi = server.Tempo()
	}

	return status
}

// Close leaves the session and releases the output
func (c *Client) Close() error {
	c.mu.Lock()
	conn, server, done := c.conn, c.server, c.done
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.SendGoodbye("shutdown"); err != nil {
		log.Printf("Failed to send goodbye: %v", err)
	}
	conn.Close()
	<-done

	c.teardown(server)
	log.Printf("Left server: %s", server.Key())
	return nil
}

// notifyError calls the OnError callback if set
func (c *Client) notifyError(err error) {
	if c.config.OnError != nil {
		c.config.OnError(err)
	} else {
		log.Printf("Client error: %v", err)
	}
}
