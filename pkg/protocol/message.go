// Package protocol defines the newline-delimited JSON messages exchanged with
// the robot controller and the diagnostics dashboard.
//
// Messages are flat JSON objects with a "type" field, so the ESP32 firmware
// can build and parse them without nesting:
//
//	{"type":"sensors","dist_front":200,"dist_left":50,"dist_right":300,"battery_voltage":7.6}
//	{"type":"command","action":"TURN_RIGHT","speed_left":140,"speed_right":40}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Robot → engine messages
	TypeSensors MessageType = "sensors" // Distance and battery readings
	TypeStatus  MessageType = "status"  // Battery level alerts, firmware info

	// Engine → robot messages
	TypeCommand MessageType = "command" // Wheel command

	// Engine → dashboard messages
	TypeDecision MessageType = "decision" // Decision with its input frame
	TypeStats    MessageType = "stats"    // Engine counters

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Known reports whether t is a message type this package understands.
func (t MessageType) Known() bool {
	switch t {
	case TypeSensors, TypeStatus, TypeCommand, TypeDecision, TypeStats, TypePing, TypePong:
		return true
	}
	return false
}

// Errors returned by parsing.
var (
	ErrUnknownType = errors.New("protocol: unknown message type")
	ErrWrongType   = errors.New("protocol: unexpected message type")
)

// Message is one wire message. Data holds the complete flat JSON object,
// including the type and ts fields.
type Message struct {
	Type      MessageType
	Timestamp int64 // Unix milliseconds
	Data      json.RawMessage
}

type header struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"ts,omitempty"`
}

// NewMessage creates a new message with the current timestamp. data must
// marshal to a JSON object or be nil.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	fields := map[string]json.RawMessage{}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("message data is not an object: %w", err)
		}
	}

	ts := time.Now().UnixMilli()
	fields["type"], _ = json.Marshal(msgType)
	fields["ts"], _ = json.Marshal(ts)

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return &Message{Type: msgType, Timestamp: ts, Data: raw}, nil
}

// ParseData unmarshals the message fields into v. Unknown fields are ignored.
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message terminated by a newline.
func (m *Message) Bytes() ([]byte, error) {
	if m.Data == nil {
		raw, err := json.Marshal(header{Type: m.Type, Timestamp: m.Timestamp})
		if err != nil {
			return nil, err
		}
		return append(raw, '\n'), nil
	}
	out := make([]byte, 0, len(m.Data)+1)
	out = append(out, m.Data...)
	return append(out, '\n'), nil
}

// ParseMessage parses one JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	data = bytes.TrimSpace(data)
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if !h.Type.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}
	return &Message{
		Type:      h.Type,
		Timestamp: h.Timestamp,
		Data:      append(json.RawMessage(nil), data...),
	}, nil
}

// SplitLines splits a websocket payload into individual JSON messages.
// Blank lines are dropped.
func SplitLines(payload []byte) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(payload, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out
}

// =============================================================================
// Robot → Engine Message Types
// =============================================================================

// SensorData is one sensor report. Pointer fields are optional on the wire.
type SensorData struct {
	DistFront      *float64 `json:"dist_front"`
	DistLeft       *float64 `json:"dist_left"`
	DistRight      *float64 `json:"dist_right"`
	BatteryVoltage *float64 `json:"battery_voltage,omitempty"`
	BatteryPercent *int     `json:"battery_percent,omitempty"`
	SpeedLeft      *float64 `json:"speed_left,omitempty"`
	SpeedRight     *float64 `json:"speed_right,omitempty"`
}

// StatusData carries out-of-band robot status.
type StatusData struct {
	Level          string  `json:"level"` // "ok", "warning", "critical"
	BatteryVoltage float64 `json:"battery_voltage,omitempty"`
	Message        string  `json:"message,omitempty"`
	Firmware       string  `json:"firmware,omitempty"`
}

// =============================================================================
// Engine → Robot Message Types
// =============================================================================

// CommandData is a wheel command.
type CommandData struct {
	Action     string `json:"action"`
	SpeedLeft  int    `json:"speed_left"`
	SpeedRight int    `json:"speed_right"`
	Source     string `json:"source,omitempty"`
	Cycle      uint64 `json:"cycle,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	Seq uint64 `json:"seq"`
}

// PongData contains pong response
type PongData struct {
	Seq       uint64 `json:"seq"`
	RobotTime int64  `json:"robot_time,omitempty"`
}
