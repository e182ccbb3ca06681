package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "command message",
			msgType: TypeCommand,
			data:    CommandData{Action: "FORWARD", SpeedLeft: 100, SpeedRight: 100},
		},
		{
			name:    "status message",
			msgType: TypeStatus,
			data:    StatusData{Level: "warning", BatteryVoltage: 6.7},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "non-object data",
			msgType: TypeStats,
			data:    []int{1, 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestCommandIsFlat(t *testing.T) {
	msg, err := NewCommandMessage(action.Decision{Action: action.TurnRight, SpeedLeft: 140, SpeedRight: 40, Source: action.SourceSafety})
	if err != nil {
		t.Fatalf("NewCommandMessage() error = %v", err)
	}
	b, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !strings.HasSuffix(string(b), "\n") {
		t.Error("message should end with newline")
	}

	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatalf("not a flat object: %v", err)
	}
	if flat["type"] != "command" || flat["action"] != "TURN_RIGHT" {
		t.Errorf("unexpected fields: %v", flat)
	}
	if flat["speed_left"].(float64) != 140 || flat["speed_right"].(float64) != 40 {
		t.Errorf("unexpected speeds: %v", flat)
	}
}

func TestParseFirmwareSensors(t *testing.T) {
	raw := []byte(`{"type":"sensors","dist_front":200,"dist_left":50,"dist_right":300,"battery_voltage":7.6,"battery_percent":72,"uptime":1234}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	data, err := GetSensorData(msg)
	if err != nil {
		t.Fatalf("GetSensorData() error = %v", err)
	}

	at := time.Unix(100, 0)
	f := data.Frame(at)
	if f.Front != 200 || f.Left != 50 || f.Right != 300 {
		t.Errorf("distances = %v/%v/%v", f.Front, f.Left, f.Right)
	}
	if f.BatteryVoltage != 7.6 || f.BatteryPercent != 72 {
		t.Errorf("battery = %v/%v", f.BatteryVoltage, f.BatteryPercent)
	}
	if f.SpeedLeft != sensor.DefaultSpeed || f.SpeedRight != sensor.DefaultSpeed {
		t.Errorf("speeds should default, got %v/%v", f.SpeedLeft, f.SpeedRight)
	}
	if !f.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v", f.Timestamp)
	}
}

func TestMissingFieldsSanitizeToClear(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"sensors","dist_left":120}`))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := GetSensorData(msg)
	raw := data.Frame(time.Now())
	if !math.IsNaN(raw.Front) || raw.BatteryPercent != -1 {
		t.Errorf("missing fields should be unset: %+v", raw)
	}
	f := sensor.Sanitize(raw, nil)
	if f.Front != sensor.MaxDistance || f.Left != 120 {
		t.Errorf("sanitized = %+v", f)
	}
}

func TestSensorsRoundTrip(t *testing.T) {
	in := sensor.Frame{Front: 210, Left: 75, Right: 333, BatteryVoltage: 7.1, BatteryPercent: 55, SpeedLeft: 90, SpeedRight: 110}
	msg, err := NewSensorsMessage(in)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := msg.Bytes()
	parsed, err := ParseMessage(b)
	if err != nil {
		t.Fatal(err)
	}
	data, err := GetSensorData(parsed)
	if err != nil {
		t.Fatal(err)
	}
	got := data.Frame(time.Time{})
	if got != in {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"unknown type", `{"type":"teleport"}`, ErrUnknownType},
		{"missing type", `{"dist_front":1}`, ErrUnknownType},
		{"invalid json", `{broken`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWrongTypeHelper(t *testing.T) {
	msg, _ := NewPingMessage(3)
	if _, err := GetSensorData(msg); !errors.Is(err, ErrWrongType) {
		t.Errorf("expected ErrWrongType, got %v", err)
	}
	ping, err := GetPingData(msg)
	if err != nil || ping.Seq != 3 {
		t.Errorf("GetPingData() = %+v, %v", ping, err)
	}
}

func TestSplitLines(t *testing.T) {
	payload := []byte("{\"type\":\"ping\"}\n\n  {\"type\":\"pong\"}  \n")
	lines := SplitLines(payload)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, l := range lines {
		if _, err := ParseMessage(l); err != nil {
			t.Errorf("ParseMessage(%q) error = %v", l, err)
		}
	}
}
