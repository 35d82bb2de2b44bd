// ABOUTME: WebSocket client for the jam session protocol
// ABOUTME: Handles connection, handshake, and message routing
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPath is the WebSocket endpoint served by jam servers
const DefaultPath = "/jam"

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string
	ClientID   string
	Name       string
	DeviceInfo DeviceInfo

	// HandshakeTimeout bounds the wait for server/hello (default 5s)
	HandshakeTimeout time.Duration
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  ServerHello

	// Message channels
	Intervals chan IntervalMessage
	Config    chan ServerConfig
	Users     chan ServerUsers
	Topic     chan ServerTopic

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// inbound is a control message with its payload left raw
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:    config,
		Intervals: make(chan IntervalMessage, 256),
		Config:    make(chan ServerConfig, 10),
		Users:     make(chan ServerUsers, 10),
		Topic:     make(chan ServerTopic, 10),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	msg := Message{
		Type: TypeClientHello,
		Payload: ClientHello{
			ClientID:   c.config.ClientID,
			Name:       c.config.Name,
			Version:    ProtocolVersion,
			DeviceInfo: &c.config.DeviceInfo,
		},
	}

	if err := c.sendJSON(msg); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	// Wait for server/hello (with timeout)
	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{}) // Clear deadline

	var reply inbound
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	if reply.Type != TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", reply.Type)
	}

	var hello ServerHello
	if err := json.Unmarshal(reply.Payload, &hello); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	c.mu.Lock()
	c.hello = hello
	c.mu.Unlock()

	log.Printf("Handshake complete with server %s (%s)", hello.Name, hello.ServerID)
	return nil
}

// Hello returns the server/hello received during the handshake
func (c *Client) Hello() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

// handleBinaryMessage handles interval frames
func (c *Client) handleBinaryMessage(data []byte) {
	m, err := DecodeInterval(data)
	if err != nil {
		log.Printf("Invalid binary message: %v", err)
		return
	}

	select {
	case c.Intervals <- m:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes control messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case TypeServerConfig:
		var cfg ServerConfig
		if err := json.Unmarshal(msg.Payload, &cfg); err != nil {
			log.Printf("Failed to parse server/config: %v", err)
			return
		}
		select {
		case c.Config <- cfg:
		case <-c.ctx.Done():
		}

	case TypeServerUsers:
		var users ServerUsers
		if err := json.Unmarshal(msg.Payload, &users); err != nil {
			log.Printf("Failed to parse server/users: %v", err)
			return
		}
		select {
		case c.Users <- users:
		case <-c.ctx.Done():
		}

	case TypeServerTopic:
		var topic ServerTopic
		if err := json.Unmarshal(msg.Payload, &topic); err != nil {
			log.Printf("Failed to parse server/topic: %v", err)
			return
		}
		select {
		case c.Topic <- topic:
		case <-time.After(100 * time.Millisecond):
			log.Printf("Topic channel full, dropping message")
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{
		Type:    TypeClientGoodbye,
		Payload: ClientGoodbye{Reason: reason},
	})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
