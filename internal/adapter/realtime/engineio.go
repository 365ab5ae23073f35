package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Engine.IO v4 packet types
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
	sioBinaryEvent  byte = '5'
	sioBinaryAck    byte = '6'
)

var errEmptyPacket = errors.New("empty packet")

// openPacket is the payload of the Engine.IO open packet
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// readTimeout is how long the client waits for any frame before it
// considers the server gone
func (o openPacket) readTimeout() time.Duration {
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

func decodeOpen(payload []byte) (openPacket, error) {
	var open openPacket
	if err := json.Unmarshal(payload, &open); err != nil {
		return openPacket{}, fmt.Errorf("invalid open packet: %w", err)
	}
	if open.PingInterval <= 0 || open.PingTimeout <= 0 {
		return openPacket{}, fmt.Errorf("invalid open packet: ping interval %d, timeout %d", open.PingInterval, open.PingTimeout)
	}
	return open, nil
}

// socketPacket is a decoded Socket.IO packet
type socketPacket struct {
	Type      byte
	Namespace string
	AckID     string
	Data      []byte
}

// decodeSocketPacket parses <type>[<attachments>-][/<nsp>,][<ackId>][<json>]
func decodeSocketPacket(b []byte) (socketPacket, error) {
	if len(b) == 0 {
		return socketPacket{}, errEmptyPacket
	}
	p := socketPacket{Type: b[0], Namespace: "/"}
	rest := b[1:]

	if p.Type == sioBinaryEvent || p.Type == sioBinaryAck {
		i := 0
		for i < len(rest) && isDigit(rest[i]) {
			i++
		}
		if i < len(rest) && rest[i] == '-' {
			rest = rest[i+1:]
		}
	}

	if len(rest) > 0 && rest[0] == '/' {
		end := 0
		for end < len(rest) && rest[end] != ',' {
			end++
		}
		p.Namespace = string(rest[:end])
		if end < len(rest) {
			end++
		}
		rest = rest[end:]
	}

	i := 0
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	p.AckID = string(rest[:i])
	p.Data = rest[i:]

	return p, nil
}

// eventName returns the name of an EVENT packet's ["name", ...args] array
func (p socketPacket) eventName() (string, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(p.Data, &args); err != nil {
		return "", fmt.Errorf("invalid event payload: %w", err)
	}
	if len(args) == 0 {
		return "", errors.New("event payload without name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", fmt.Errorf("invalid event name: %w", err)
	}
	return name, nil
}

func (p socketPacket) isEvent() bool {
	return p.Type == sioEvent || p.Type == sioBinaryEvent
}

// encodeConnect builds the Engine.IO message carrying a Socket.IO CONNECT
// for the namespace
func encodeConnect(namespace string) []byte {
	if namespace == "" || namespace == "/" {
		return []byte{eioMessage, sioConnect}
	}
	return []byte(string([]byte{eioMessage, sioConnect}) + namespace + ",")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
