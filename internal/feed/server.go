// ABOUTME: Development jam session server
// ABOUTME: Broadcasts synthetic participant intervals to connected clients
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jamsync/jamsync-go/internal/discovery"
	"github.com/jamsync/jamsync-go/pkg/audio"
	"github.com/jamsync/jamsync-go/pkg/audio/encode"
	"github.com/jamsync/jamsync-go/pkg/protocol"
	"github.com/jamsync/jamsync-go/pkg/session"
)

const (
	DefaultPort       = 2049
	DefaultSampleRate = 48000
	DefaultUsers      = 2
	DefaultMaxUsers   = 8
	DefaultCodec      = "opus"

	// pcmBitDepth is the sample width of raw PCM intervals
	pcmBitDepth = 16
)

// Config configures a feed server
type Config struct {
	// Port to listen on (default: 2049)
	Port int

	// Name of the server for identification
	Name string

	// Topic is announced in server/hello
	Topic string

	// Bpm and Bpi are the initial tempo (default 120/16)
	Bpm int
	Bpi int

	// Users is the number of virtual participants (default: 2)
	Users int

	// Bot lists a silent ninbot user alongside the participants
	Bot bool

	// MaxUsers caps participants plus clients (default: 8)
	MaxUsers int

	// SampleRate of the encoded intervals (default: 48000)
	SampleRate int

	// Codec of the intervals: "opus" or "pcm" (default: opus)
	Codec string

	// AudioFile adds a participant looping this file (Ogg, FLAC or MP3)
	AudioFile string

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	// Debug enables debug logging
	Debug bool
}

// source renders a participant's audio at the session rate
type source interface {
	Read(samples []int32) int
}

// participant is a virtual user that plays a source on channel 0
type participant struct {
	user    session.User
	label   string
	source  source
	encoder encode.Encoder
	samples []int32
}

// client represents a connected client (internal)
type client struct {
	ID      string
	Name    string
	Address string
	Conn    *websocket.Conn

	// Output channel for messages
	sendChan chan interface{}
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID      string
	Name    string
	Address string
}

// envelope is a control message with its payload left raw
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Server is a jam session with virtual participants
type Server struct {
	config   Config
	serverID string

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	participants []*participant

	// Session state announced to clients
	mu    sync.RWMutex
	bpm   int
	bpi   int
	topic string

	// Client management
	clients   map[string]*client
	clientsMu sync.RWMutex

	intervals atomic.Int64

	// mDNS discovery
	mdnsManager *discovery.Manager

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// NewServer creates a new feed server
func NewServer(config Config) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "JamSync Feed"
	}
	if config.Bpm == 0 {
		config.Bpm = session.DefaultBpm
	}
	if config.Bpi == 0 {
		config.Bpi = session.DefaultBpi
	}
	if config.Users == 0 {
		config.Users = DefaultUsers
	}
	if config.MaxUsers == 0 {
		config.MaxUsers = DefaultMaxUsers
	}
	if config.SampleRate == 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Codec == "" {
		config.Codec = DefaultCodec
	}
	if config.Codec != "opus" && config.Codec != "pcm" {
		return nil, fmt.Errorf("unsupported codec: %s", config.Codec)
	}
	if err := validateTempo(config.Bpm, config.Bpi); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      mux,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For local network deployments, accept all origins
				return true
			},
		},
		bpm:      config.Bpm,
		bpi:      config.Bpi,
		topic:    config.Topic,
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}

	for i := 0; i < config.Users; i++ {
		tone := NewToneSource(toneFrequency(i), config.SampleRate)
		label := fmt.Sprintf("%.0fHz", tone.Frequency())
		if err := s.addParticipant(fmt.Sprintf("tone%d", i+1), "sine", label, tone); err != nil {
			return nil, err
		}
	}

	if config.AudioFile != "" {
		file, err := NewFileSource(config.AudioFile, config.SampleRate)
		if err != nil {
			return nil, err
		}
		label := fmt.Sprintf("%.1fs loop", float64(file.Frames())/float64(config.SampleRate))
		if err := s.addParticipant(file.Name(), "file", label, file); err != nil {
			return nil, err
		}
	}

	mux.HandleFunc(protocol.DefaultPath, s.handleWebSocket)

	return s, nil
}

// addParticipant creates a virtual user with its own interval encoder
func (s *Server) addParticipant(name, channel, label string, src source) error {
	encoder, err := encode.New(s.format())
	if err != nil {
		return fmt.Errorf("failed to create encoder for %s: %w", name, err)
	}

	s.participants = append(s.participants, &participant{
		user: session.User{
			Name:     name,
			Address:  "127.0.0.x",
			Channels: []session.Channel{{Index: 0, Name: channel}},
		},
		label:   label,
		source:  src,
		encoder: encoder,
	})
	return nil
}

// format is the layout of every encoded interval
func (s *Server) format() audio.Format {
	return audio.Format{Codec: s.config.Codec, SampleRate: s.config.SampleRate, Channels: audio.Channels, BitDepth: pcmBitDepth}
}

// intervalFormat announces the layout of headerless intervals
func (s *Server) intervalFormat() *protocol.IntervalFormat {
	if s.config.Codec != "pcm" {
		return nil
	}
	f := s.format()
	return &protocol.IntervalFormat{Codec: f.Codec, SampleRate: f.SampleRate, Channels: f.Channels, BitDepth: f.BitDepth}
}

func validateTempo(bpm, bpi int) error {
	if bpm < session.MinBpm || bpm > session.MaxBpm {
		return fmt.Errorf("bpm %d out of range [%d, %d]", bpm, session.MinBpm, session.MaxBpm)
	}
	if bpi < session.MinBpi || bpi > session.MaxBpi {
		return fmt.Errorf("bpi %d out of range [%d, %d]", bpi, session.MinBpi, session.MaxBpi)
	}
	return nil
}

// Handler returns the HTTP handler serving the jam endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ServerID returns the server's identifier
func (s *Server) ServerID() string {
	return s.serverID
}

// Start starts the server and blocks until Stop
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)
	bpm, bpi := s.Tempo()
	log.Printf("Session: %d participants, %d bpm, %d bpi, %dHz %s", len(s.participants), bpm, bpi, s.config.SampleRate, s.config.Codec)

	// Start mDNS advertisement if enabled
	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.DefaultPath,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		s.Stop()
		s.wg.Wait()
		return err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.shutdownMu.Lock()
		s.isShutdown = true
		s.shutdownMu.Unlock()
		close(s.stopChan)
		s.closeClients()
	})
}

// Run broadcasts one interval per participant at every interval boundary
// until Stop. The first interval is sent immediately.
func (s *Server) Run() {
	log.Printf("Interval streaming started")

	next := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			d := s.broadcastInterval()
			next = next.Add(d)
			timer.Reset(time.Until(next))
		case <-s.stopChan:
			log.Printf("Interval streaming stopping")
			return
		}
	}
}

// broadcastInterval encodes and sends the next interval of every
// participant and returns its duration
func (s *Server) broadcastInterval() time.Duration {
	bpm, bpi := s.Tempo()
	frames := session.IntervalFrames(s.config.SampleRate, bpm, bpi)

	for _, p := range s.participants {
		n := frames * audio.Channels
		if cap(p.samples) < n {
			p.samples = make([]int32, n)
		}
		samples := p.samples[:n]
		p.source.Read(samples)

		data, err := p.encoder.Encode(samples)
		if err != nil {
			log.Printf("Opus encode error for %s: %v", p.user.Name, err)
			continue
		}

		frame, err := protocol.EncodeInterval(protocol.IntervalMessage{
			User:    p.user.FullName(),
			Channel: p.user.Channels[0].Index,
			ID:      uuid.New(),
			Data:    data,
		})
		if err != nil {
			log.Printf("Interval frame error for %s: %v", p.user.Name, err)
			continue
		}
		s.broadcast(frame)
	}

	count := s.intervals.Add(1)
	if s.config.Debug {
		log.Printf("Interval %d sent: %d frames at %d bpm / %d bpi", count, frames, bpm, bpi)
	}

	return time.Duration(frames) * time.Second / time.Duration(s.config.SampleRate)
}

// Intervals returns how many intervals have been broadcast
func (s *Server) Intervals() int64 {
	return s.intervals.Load()
}

// Tempo returns the announced bpm and bpi
func (s *Server) Tempo() (bpm, bpi int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bpm, s.bpi
}

// SetTempo announces a new tempo; it takes effect at the next interval
func (s *Server) SetTempo(bpm, bpi int) error {
	s.shutdownMu.RLock()
	stopped := s.isShutdown
	s.shutdownMu.RUnlock()
	if stopped {
		return ErrStopped
	}
	if err := validateTempo(bpm, bpi); err != nil {
		return err
	}

	s.mu.Lock()
	s.bpm, s.bpi = bpm, bpi
	s.mu.Unlock()

	log.Printf("Tempo changed: %d bpm, %d bpi", bpm, bpi)
	s.broadcastMessage(protocol.TypeServerConfig, protocol.ServerConfig{Bpm: bpm, Bpi: bpi})
	return nil
}

// SetTopic announces a new session topic
func (s *Server) SetTopic(topic string) {
	s.mu.Lock()
	s.topic = topic
	s.mu.Unlock()

	s.broadcastMessage(protocol.TypeServerTopic, protocol.ServerTopic{Topic: topic})
}

// Clients returns information about all connected clients
func (s *Server) Clients() []ClientInfo {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, ClientInfo{ID: c.ID, Name: c.Name, Address: c.Address})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn, maskAddress(r.RemoteAddr))
}

// handleConnection manages a client connection
func (s *Server) handleConnection(conn *websocket.Conn, address string) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	// Wait for client/hello
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var msg envelope
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := json.Unmarshal(msg.Payload, &hello); err != nil {
		log.Printf("Error unmarshaling client hello: %v", err)
		return
	}

	if hello.Name == "" {
		log.Printf("Client hello missing name")
		return
	}
	if hello.ClientID == "" {
		hello.ClientID = uuid.New().String()
	}

	log.Printf("Client hello: %s (ID: %s)", hello.Name, hello.ClientID)

	c := &client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Address:  address,
		Conn:     conn,
		sendChan: make(chan interface{}, 256),
	}

	// Queue the handshake before registering so no interval precedes it
	s.mu.RLock()
	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.ProtocolVersion,
		Topic:    s.topic,
		MaxUsers: s.config.MaxUsers,
		Format:   s.intervalFormat(),
	}
	config := protocol.ServerConfig{Bpm: s.bpm, Bpi: s.bpi}
	s.mu.RUnlock()

	s.sendMessage(c, protocol.TypeServerHello, serverHello)
	s.sendMessage(c, protocol.TypeServerConfig, config)

	s.clientsMu.Lock()
	if _, exists := s.clients[c.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected, rejecting duplicate", c.ID)
		return
	}
	if len(s.clients)+len(s.participants) >= s.config.MaxUsers {
		s.clientsMu.Unlock()
		log.Printf("Session full, rejecting %s", c.Name)
		return
	}
	s.clients[c.ID] = c
	s.clientsMu.Unlock()

	defer func() {
		s.removeClient(c)
		s.broadcastUsers()
		log.Printf("Client disconnected: %s", c.Name)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	s.broadcastUsers()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if !s.handleClientMessage(c, data) {
			return
		}
	}
}

// clientWriter sends messages to the client
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}

			switch v := msg.(type) {
			case []byte:
				c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := c.Conn.WriteMessage(websocket.BinaryMessage, v); err != nil {
					return
				}
			default:
				data, err := json.Marshal(v)
				if err != nil {
					continue
				}
				c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes a message from a client and reports
// whether the connection stays open
func (s *Server) handleClientMessage(c *client, data []byte) bool {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return true
	}

	switch msg.Type {
	case protocol.TypeClientGoodbye:
		var goodbye protocol.ClientGoodbye
		json.Unmarshal(msg.Payload, &goodbye)
		log.Printf("Client %s goodbye: %s", c.Name, goodbye.Reason)
		return false
	default:
		if s.config.Debug {
			log.Printf("Unknown message type: %s", msg.Type)
		}
	}
	return true
}

// closeClients drops every connection so their handlers return
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// removeClient removes a client
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	delete(s.clients, c.ID)
	close(c.sendChan)
}

// users builds the server/users list: participants, the bot, then clients
func (s *Server) users() protocol.ServerUsers {
	var users []protocol.UserInfo
	for _, p := range s.participants {
		info := protocol.UserInfo{Name: p.user.Name, Address: p.user.Address}
		for _, ch := range p.user.Channels {
			info.Channels = append(info.Channels, protocol.ChannelInfo{Index: ch.Index, Name: ch.Name})
		}
		users = append(users, info)
	}
	if s.config.Bot {
		users = append(users, protocol.UserInfo{Name: "ninbot", Address: "127.0.0.x", Bot: true})
	}

	s.clientsMu.RLock()
	for _, c := range s.clients {
		users = append(users, protocol.UserInfo{Name: c.Name, Address: c.Address})
	}
	s.clientsMu.RUnlock()

	return protocol.ServerUsers{Users: users}
}

// broadcastUsers sends the current user list to every client
func (s *Server) broadcastUsers() {
	s.broadcastMessage(protocol.TypeServerUsers, s.users())
}

// broadcastMessage sends a JSON message to every client
func (s *Server) broadcastMessage(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if err := s.sendMessage(c, msgType, payload); err != nil && s.config.Debug {
			log.Printf("Error sending %s to %s: %v", msgType, c.Name, err)
		}
	}
}

// broadcast sends a binary frame to every client
func (s *Server) broadcast(frame []byte) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if err := s.sendBinary(c, frame); err != nil && s.config.Debug {
			log.Printf("Error sending interval to %s: %v", c.Name, err)
		}
	}
}

// sendMessage sends a JSON message to a client
func (s *Server) sendMessage(c *client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// sendBinary sends binary data to a client
func (s *Server) sendBinary(c *client, data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

// maskAddress hides the last IPv4 octet the way public jam servers do
func maskAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return host
	}
	v4 := ip.To4().String()
	return v4[:strings.LastIndexByte(v4, '.')] + ".x"
}
