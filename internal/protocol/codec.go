// Package protocol frames and parses the broker's Engine.IO-style text
// protocol. Every inbound frame maps to exactly one Message variant;
// malformed input is reported as a Malformed message rather than an
// error so one bad frame never takes down a connection.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frame prefixes and fixed frames on the wire.
const (
	openPrefix  = "0"
	eventPrefix = "42"

	PingFrame          = "2"
	PongFrame          = "3"
	NamespaceJoinFrame = "40"
)

// Kind discriminates decoded messages.
type Kind int

const (
	KindOpen Kind = iota
	KindNamespaceConnected
	KindPing
	KindPong
	KindEvent
	KindMalformed
)

// Open carries the connection parameters from the `0{...}` handshake frame.
type Open struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // milliseconds
	PingTimeout  int    `json:"pingTimeout"`  // milliseconds
}

// Event is a `42[name,payload]` frame. Payload is kept raw so new event
// names can be handled downstream without codec changes.
type Event struct {
	Name    string
	Payload json.RawMessage
}

// Message is a single decoded frame. Exactly one of the variant fields
// is meaningful, selected by Kind.
type Message struct {
	Kind  Kind
	Open  Open
	Event Event

	// Raw and Err are set for KindMalformed.
	Raw string
	Err error
}

// Decode classifies and parses one raw text frame.
// It never panics and never returns an error; undecodable input yields
// a KindMalformed message carrying the raw frame.
func Decode(frame string) Message {
	switch {
	case frame == PingFrame:
		return Message{Kind: KindPing}
	case frame == PongFrame:
		return Message{Kind: KindPong}
	case frame == NamespaceJoinFrame:
		return Message{Kind: KindNamespaceConnected}
	case strings.HasPrefix(frame, eventPrefix):
		return decodeEvent(frame)
	case strings.HasPrefix(frame, openPrefix):
		return decodeOpen(frame)
	default:
		return malformed(frame, fmt.Errorf("unexpected frame prefix"))
	}
}

func decodeOpen(frame string) Message {
	var o Open
	if err := json.Unmarshal([]byte(frame[len(openPrefix):]), &o); err != nil {
		return malformed(frame, fmt.Errorf("open frame: %w", err))
	}
	return Message{Kind: KindOpen, Open: o}
}

func decodeEvent(frame string) Message {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(frame[len(eventPrefix):]), &parts); err != nil {
		return malformed(frame, fmt.Errorf("event frame: %w", err))
	}
	if len(parts) == 0 {
		return malformed(frame, fmt.Errorf("event frame: empty array"))
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return malformed(frame, fmt.Errorf("event name: %w", err))
	}

	ev := Event{Name: name}
	if len(parts) > 1 {
		ev.Payload = parts[1]
	}
	return Message{Kind: KindEvent, Event: ev}
}

func malformed(frame string, err error) Message {
	return Message{Kind: KindMalformed, Raw: frame, Err: err}
}

// EncodeEvent produces a `42[name,payload]` frame. A nil payload encodes
// as `42["name"]`.
func EncodeEvent(name string, payload any) (string, error) {
	parts := []any{name}
	if payload != nil {
		parts = append(parts, payload)
	}
	b, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("encode event %q: %w", name, err)
	}
	return eventPrefix + string(b), nil
}

// EncodeHandshake produces the `0{...}` bootstrap frame the client sends
// right after the transport opens.
func EncodeHandshake(o Open) (string, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode handshake: %w", err)
	}
	return openPrefix + string(b), nil
}
