package protocol

import (
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewSensorsMessage creates a sensors message from a frame. Used by
// simulators and tests standing in for the robot.
func NewSensorsMessage(f sensor.Frame) (*Message, error) {
	pct := f.BatteryPercent
	return NewMessage(TypeSensors, SensorData{
		DistFront:      &f.Front,
		DistLeft:       &f.Left,
		DistRight:      &f.Right,
		BatteryVoltage: &f.BatteryVoltage,
		BatteryPercent: &pct,
		SpeedLeft:      &f.SpeedLeft,
		SpeedRight:     &f.SpeedRight,
	})
}

// NewCommandMessage creates a wheel command from a decision.
func NewCommandMessage(d action.Decision) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{
		Action:     string(d.Action),
		SpeedLeft:  d.SpeedLeft,
		SpeedRight: d.SpeedRight,
		Source:     string(d.Source),
		Cycle:      d.Cycle,
	})
}

// DecisionData is the dashboard view of one cycle.
type DecisionData struct {
	Decision action.Decision `json:"decision"`
	Frame    sensor.Frame    `json:"frame"`
}

// NewDecisionMessage creates a dashboard decision message.
func NewDecisionMessage(d action.Decision, f sensor.Frame) (*Message, error) {
	return NewMessage(TypeDecision, DecisionData{Decision: d, Frame: f})
}

// NewStatsMessage creates a dashboard stats message. stats must marshal to
// a JSON object.
func NewStatsMessage(stats any) (*Message, error) {
	return NewMessage(TypeStats, stats)
}

// NewStatusMessage creates a robot status message.
func NewStatusMessage(level string, voltage float64, msg string) (*Message, error) {
	return NewMessage(TypeStatus, StatusData{Level: level, BatteryVoltage: voltage, Message: msg})
}

// NewPingMessage creates a ping message
func NewPingMessage(seq uint64) (*Message, error) {
	return NewMessage(TypePing, PingData{Seq: seq})
}

// NewPongMessage creates a pong message
func NewPongMessage(seq uint64) (*Message, error) {
	return NewMessage(TypePong, PongData{Seq: seq, RobotTime: time.Now().UnixMilli()})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

func expect(msg *Message, t MessageType) error {
	if msg.Type != t {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongType, msg.Type, t)
	}
	return nil
}

// GetSensorData extracts SensorData from a message
func GetSensorData(msg *Message) (*SensorData, error) {
	if err := expect(msg, TypeSensors); err != nil {
		return nil, err
	}
	var data SensorData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCommandData extracts CommandData from a message
func GetCommandData(msg *Message) (*CommandData, error) {
	if err := expect(msg, TypeCommand); err != nil {
		return nil, err
	}
	var data CommandData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts StatusData from a message
func GetStatusData(msg *Message) (*StatusData, error) {
	if err := expect(msg, TypeStatus); err != nil {
		return nil, err
	}
	var data StatusData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts PingData from a message
func GetPingData(msg *Message) (*PingData, error) {
	var data PingData
	if err := msg.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Frame converts a sensor report to a raw frame stamped with at. Missing
// distances come through as NaN so sanitization reads them as clear;
// missing speeds default to cruising speed.
func (s *SensorData) Frame(at time.Time) sensor.Frame {
	f := sensor.Frame{
		Front:          orNaN(s.DistFront),
		Left:           orNaN(s.DistLeft),
		Right:          orNaN(s.DistRight),
		BatteryVoltage: orNaN(s.BatteryVoltage),
		BatteryPercent: -1,
		SpeedLeft:      sensor.DefaultSpeed,
		SpeedRight:     sensor.DefaultSpeed,
		Timestamp:      at,
	}
	if s.BatteryPercent != nil {
		f.BatteryPercent = *s.BatteryPercent
	}
	if s.SpeedLeft != nil {
		f.SpeedLeft = *s.SpeedLeft
	}
	if s.SpeedRight != nil {
		f.SpeedRight = *s.SpeedRight
	}
	return f
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
