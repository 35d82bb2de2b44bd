// ABOUTME: Jam session protocol message type definitions
// ABOUTME: JSON control envelopes and the binary interval frame
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// ProtocolVersion is sent in client/hello and server/hello
const ProtocolVersion = 1

// Control message types
const (
	TypeClientHello   = "client/hello"
	TypeClientGoodbye = "client/goodbye"
	TypeServerHello   = "server/hello"
	TypeServerConfig  = "server/config"
	TypeServerUsers   = "server/users"
	TypeServerTopic   = "server/topic"
)

const (
	// IntervalMessageType is the binary message type of an interval frame
	IntervalMessageType = 8

	// intervalHeaderSize is type + channel + name length, before the name
	intervalHeaderSize = 1 + 1 + 2

	// guidSize is the interval GUID that follows the name
	guidSize = 16
)

// Message is the top-level wrapper for all control messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains client software identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID  string `json:"server_id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Topic     string `json:"topic,omitempty"`
	MaxUsers  int    `json:"max_users"`
	StreamURL string `json:"stream_url,omitempty"`

	// Format is announced when intervals carry no codec header
	Format *IntervalFormat `json:"format,omitempty"`
}

// IntervalFormat is the layout of headerless interval payloads
type IntervalFormat struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth,omitempty"`
}

// ServerConfig announces the tempo contract
type ServerConfig struct {
	Bpm int `json:"bpm"`
	Bpi int `json:"bpi"`
}

// ServerUsers is the authoritative list of online users
type ServerUsers struct {
	Users []UserInfo `json:"users"`
}

// UserInfo describes one online user
type UserInfo struct {
	Name     string        `json:"name"`
	Address  string        `json:"address"`
	Bot      bool          `json:"bot,omitempty"`
	Channels []ChannelInfo `json:"channels"`
}

// ChannelInfo describes one channel of a user
type ChannelInfo struct {
	Index uint8  `json:"index"`
	Name  string `json:"name"`
}

// ServerTopic announces a new session topic
type ServerTopic struct {
	Topic string `json:"topic"`
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "user_request", "another_server"
}

// IntervalMessage is one compressed interval for one user channel.
// Wire layout: [type][channel][name length u16 BE][name][guid 16][payload]
type IntervalMessage struct {
	User    string
	Channel uint8
	ID      uuid.UUID
	Data    []byte
}

// EncodeInterval serializes an interval frame
func EncodeInterval(m IntervalMessage) ([]byte, error) {
	if len(m.User) > 0xFFFF {
		return nil, fmt.Errorf("user name too long: %d bytes", len(m.User))
	}

	out := make([]byte, intervalHeaderSize+len(m.User)+guidSize+len(m.Data))
	out[0] = IntervalMessageType
	out[1] = m.Channel
	binary.BigEndian.PutUint16(out[2:4], uint16(len(m.User)))
	off := intervalHeaderSize
	off += copy(out[off:], m.User)
	off += copy(out[off:], m.ID[:])
	copy(out[off:], m.Data)
	return out, nil
}

// DecodeInterval parses an interval frame. Data aliases the input.
func DecodeInterval(data []byte) (IntervalMessage, error) {
	if len(data) < intervalHeaderSize {
		return IntervalMessage{}, fmt.Errorf("interval frame too short: %d bytes", len(data))
	}
	if data[0] != IntervalMessageType {
		return IntervalMessage{}, fmt.Errorf("unknown binary message type: %d", data[0])
	}

	nameLen := int(binary.BigEndian.Uint16(data[2:4]))
	end := intervalHeaderSize + nameLen + guidSize
	if len(data) < end {
		return IntervalMessage{}, fmt.Errorf("interval frame truncated: %d bytes, need %d", len(data), end)
	}

	m := IntervalMessage{
		Channel: data[1],
		User:    string(data[intervalHeaderSize : intervalHeaderSize+nameLen]),
		Data:    data[end:],
	}
	copy(m.ID[:], data[intervalHeaderSize+nameLen:end])
	return m, nil
}
