// Package feedback judges whether the previous decision worked by comparing
// the frame it was made on with the frame that followed.
package feedback

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Config holds the success tolerances in millimeters.
type Config struct {
	// CollisionFloor fails any decision whose next frame has a distance below it.
	CollisionFloor float64 `yaml:"collision_floor"`

	// ForwardTolerance is how much front clearance FORWARD may lose.
	ForwardTolerance float64 `yaml:"forward_tolerance"`

	// TurnTolerance is how much clearance the turned-to side may lose.
	TurnTolerance float64 `yaml:"turn_tolerance"`

	// SafeFloor is the minimum distance a STOP must leave.
	SafeFloor float64 `yaml:"safe_floor"`
}

// DefaultConfig returns the standard tolerances.
func DefaultConfig() Config {
	return Config{
		CollisionFloor:   40,
		ForwardTolerance: 20,
		TurnTolerance:    10,
		SafeFloor:        60,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("feedback: invalid config")

// Validate checks that tolerances are non-negative.
func (c Config) Validate() error {
	if c.CollisionFloor < 0 || c.ForwardTolerance < 0 || c.TurnTolerance < 0 || c.SafeFloor < 0 {
		return fmt.Errorf("%w: tolerances must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Evaluator applies the per-action success rules.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Success reports whether taking a in prev led to an acceptable cur.
func (e *Evaluator) Success(prev, cur sensor.Frame, a action.Action) bool {
	if cur.Min() < e.cfg.CollisionFloor {
		return false
	}
	switch a {
	case action.Forward:
		return cur.Front >= prev.Front-e.cfg.ForwardTolerance
	case action.TurnLeft:
		return cur.Left >= prev.Left-e.cfg.TurnTolerance
	case action.TurnRight:
		return cur.Right >= prev.Right-e.cfg.TurnTolerance
	case action.Escape, action.Reverse:
		return cur.Min() > prev.Min()
	case action.Stop:
		return cur.Min() > e.cfg.SafeFloor
	default:
		return false
	}
}
