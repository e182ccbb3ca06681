// Package action defines the closed vocabulary shared by every decision layer:
// motor actions, turn directions, situation categories and decision sources.
//
// Direction convention: TURN_LEFT drives the left wheel slower than the right,
// TURN_RIGHT drives the left wheel faster. Every layer that picks a side to
// escape toward goes through EscapeToward so they cannot disagree.
package action

import (
	"errors"
	"fmt"
)

// Speed limits for a single wheel.
const (
	MaxSpeed = 150
	MinSpeed = -150
)

// Action is a motor command.
type Action string

// Actions understood by the actuation layer.
const (
	Forward   Action = "FORWARD"
	Reverse   Action = "REVERSE"
	TurnLeft  Action = "TURN_LEFT"
	TurnRight Action = "TURN_RIGHT"
	Escape    Action = "ESCAPE"
	Stop      Action = "STOP"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case Forward, Reverse, TurnLeft, TurnRight, Escape, Stop:
		return true
	}
	return false
}

// Direction is the side a turn heads toward.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Opposite returns the other side. None stays None.
func (d Direction) Opposite() Direction {
	switch d {
	case Left:
		return Right
	case Right:
		return Left
	default:
		return None
	}
}

// TurnAction returns TURN_LEFT or TURN_RIGHT for d.
func (d Direction) TurnAction() Action {
	if d == Left {
		return TurnLeft
	}
	return TurnRight
}

// DirectionOf returns the turn direction of an action, None for non-turns.
func DirectionOf(a Action) Direction {
	switch a {
	case TurnLeft:
		return Left
	case TurnRight:
		return Right
	default:
		return None
	}
}

// EscapeToward returns the side with strictly more clearance. Ties go Right.
func EscapeToward(left, right float64) Direction {
	if left > right {
		return Left
	}
	return Right
}

// Turn returns wheel speeds (left, right) for turning toward dir, with the
// outer wheel at fast and the inner wheel at slow.
func Turn(dir Direction, fast, slow int) (int, int) {
	if dir == Left {
		return slow, fast
	}
	return fast, slow
}

// Source identifies which layer produced a decision.
type Source string

const (
	SourceSafety    Source = "SAFETY"
	SourceManeuver  Source = "MANEUVER"
	SourceKnowledge Source = "KNOWLEDGE"
	SourceAntiOsc   Source = "ANTI_OSC"
)

// ErrUnknownCategory is returned when parsing a category name fails.
var ErrUnknownCategory = errors.New("action: unknown category")

// ClampSpeed limits v to [MinSpeed, MaxSpeed].
func ClampSpeed(v int) int {
	if v > MaxSpeed {
		return MaxSpeed
	}
	if v < MinSpeed {
		return MinSpeed
	}
	return v
}

// Decision is the engine output for one cycle.
type Decision struct {
	Action     Action   `json:"action"`
	SpeedLeft  int      `json:"speed_left"`
	SpeedRight int      `json:"speed_right"`
	Source     Source   `json:"source"`
	Category   Category `json:"category"`
	Concept    string   `json:"concept,omitempty"`
	Learned    bool     `json:"learned,omitempty"`
	Similarity float64  `json:"similarity,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Cycle      uint64   `json:"cycle"`
}

// Direction returns the turn direction of the decision.
func (d Decision) Direction() Direction {
	return DirectionOf(d.Action)
}

// Clamped returns d with both speeds inside the wheel limits.
func (d Decision) Clamped() Decision {
	d.SpeedLeft = ClampSpeed(d.SpeedLeft)
	d.SpeedRight = ClampSpeed(d.SpeedRight)
	return d
}

func (d Decision) String() string {
	s := fmt.Sprintf("%s L=%d R=%d [%s/%s]", d.Action, d.SpeedLeft, d.SpeedRight, d.Source, d.Category)
	if d.Concept != "" {
		s += " " + d.Concept
	}
	return s
}

// StopDecision returns a full stop from src.
func StopDecision(src Source, reason string) Decision {
	return Decision{Action: Stop, Source: src, Category: Collision, Reason: reason}
}
