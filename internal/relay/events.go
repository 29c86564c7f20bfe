// Package relay decodes inbound frames, drives the registry and session store
// and fans events out to room members.
package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Outbound frame types.
const (
	TypeSystem  = "system"
	TypeMessage = "message"
	TypeError   = "error"
)

// Inbound frame types.
const (
	TypeJoin  = "join"
	TypeLeave = "leave"
	TypeSend  = "message"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownCommand = errors.New("unknown command")
)

// Frame is the wire unit in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Event is an outbound event: SystemEvent, MessageEvent or ErrorEvent.
type Event interface {
	eventType() string
}

type SystemEvent struct {
	Text string `json:"text"`
}

type MessageEvent struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorEvent struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

func (SystemEvent) eventType() string  { return TypeSystem }
func (MessageEvent) eventType() string { return TypeMessage }
func (ErrorEvent) eventType() string   { return TypeError }

// Error codes carried by ErrorEvent.
const (
	CodeMalformed       = "malformed_frame"
	CodeUnauthenticated = "unauthenticated"
	CodeEmptyMessage    = "empty_message"
	CodeTooLong         = "message_too_long"
	CodePersistence     = "persistence_failed"
)

// EncodeEvent renders ev as a frame. created_at is written in UTC.
func EncodeEvent(ev Event) ([]byte, error) {
	if m, ok := ev.(MessageEvent); ok {
		m.CreatedAt = m.CreatedAt.UTC()
		ev = m
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.eventType(), err)
	}

	return json.Marshal(Frame{Type: ev.eventType(), Payload: payload})
}

// Command is a decoded inbound frame: JoinCommand, LeaveCommand or SendCommand.
type Command interface {
	command()
}

type JoinCommand struct {
	Room string
}

type LeaveCommand struct {
	Room string
}

type SendCommand struct {
	Room string
	Text string
}

func (JoinCommand) command()  {}
func (LeaveCommand) command() {}
func (SendCommand) command()  {}

type roomPayload struct {
	Room string `json:"room"`
}

type sendPayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// DecodeCommand parses an inbound frame. An absent room becomes defaultRoom.
// Unknown fields and wrong field types fail with ErrMalformedFrame; an unknown
// type fails with both ErrMalformedFrame and ErrUnknownCommand.
func DecodeCommand(data []byte, defaultRoom string) (Command, error) {
	var f Frame
	if err := strictUnmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	room := func(r string) string {
		if r == "" {
			return defaultRoom
		}
		return r
	}

	switch f.Type {
	case TypeJoin, TypeLeave:
		var p roomPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return nil, err
		}
		if f.Type == TypeJoin {
			return JoinCommand{Room: room(p.Room)}, nil
		}
		return LeaveCommand{Room: room(p.Room)}, nil
	case TypeSend:
		var p sendPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return nil, err
		}
		return SendCommand{Room: room(p.Room), Text: p.Text}, nil
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrMalformedFrame, ErrUnknownCommand, f.Type)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := strictUnmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return nil
}

func strictUnmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}

	return nil
}
