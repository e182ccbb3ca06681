// Package maneuver runs the multi-cycle behaviors that override normal
// decisions: avoidance turns, emergency escapes and anti-oscillation.
//
// The machine is a plain state value plus per-kind enter, step and exit
// functions. Exactly one maneuver is active at a time; every active
// maneuver either completes or is forcibly terminated after
// MaxManeuverCycles.
package maneuver

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-swarm/pkg/action"
)

// Kind identifies the active maneuver.
type Kind int

const (
	Idle Kind = iota
	AvoidanceTurn
	Emergency
	AntiOscillation
)

func (k Kind) String() string {
	switch k {
	case AvoidanceTurn:
		return "AVOIDANCE_TURN"
	case Emergency:
		return "EMERGENCY"
	case AntiOscillation:
		return "ANTI_OSCILLATION"
	default:
		return "NONE"
	}
}

// Phase is the emergency sub-state.
type Phase int

const (
	Reversing Phase = iota
	Aligning
)

func (p Phase) String() string {
	if p == Aligning {
		return "ALIGNING"
	}
	return "REVERSING"
}

// State is the active maneuver and its bookkeeping.
type State struct {
	Kind Kind `json:"kind"`

	// Turn is the side the maneuver is heading toward.
	Turn action.Direction `json:"turn"`

	// StartTarget is the distance on the Turn side when the avoidance began.
	StartTarget float64 `json:"start_target,omitempty"`

	// Blocked is the side that triggered the avoidance.
	Blocked action.Direction `json:"blocked"`

	Phase     Phase `json:"phase"`
	Steps     int   `json:"steps"`     // steps taken in the current phase
	Remaining int   `json:"remaining"` // anti-oscillation cycles left
	Age       int   `json:"age"`       // cycles since start
}

// Config holds maneuver thresholds (mm), durations (cycles) and speeds.
type Config struct {
	// Avoidance starts when a side is closer than AvoidDistance and the
	// sides differ by more than AvoidMinAsymmetry.
	AvoidDistance     float64 `yaml:"avoid_distance"`
	AvoidMinAsymmetry float64 `yaml:"avoid_min_asymmetry"`

	// Avoidance completes once the target side improves by ImproveMargin
	// or exceeds OpenDistance.
	ImproveMargin float64 `yaml:"improve_margin"`
	OpenDistance  float64 `yaml:"open_distance"`

	// CooldownCycles refuses an opposite-direction avoidance this soon
	// after the previous maneuver ended.
	CooldownCycles int `yaml:"cooldown_cycles"`

	ReverseSteps       int     `yaml:"reverse_steps"`
	AlignClearDistance float64 `yaml:"align_clear_distance"`

	AntiOscCycles       int `yaml:"anti_osc_cycles"`
	HistorySize         int `yaml:"history_size"`
	OscWindow           int `yaml:"osc_window"`
	MaxDirectionChanges int `yaml:"max_direction_changes"`

	MaxManeuverCycles int `yaml:"max_maneuver_cycles"`

	AvoidFast       int `yaml:"avoid_fast"`
	AvoidSlow       int `yaml:"avoid_slow"`
	ExitSpeed       int `yaml:"exit_speed"`
	ReverseSpeed    int `yaml:"reverse_speed"`
	RotateSpeed     int `yaml:"rotate_speed"`
	AntiOscSpeed    int `yaml:"anti_osc_speed"`
	HysteresisSpeed int `yaml:"hysteresis_speed"`
}

// DefaultConfig returns settings for a 20 Hz loop.
func DefaultConfig() Config {
	return Config{
		AvoidDistance:       200,
		AvoidMinAsymmetry:   20,
		ImproveMargin:       20,
		OpenDistance:        300,
		CooldownCycles:      40,
		ReverseSteps:        20,
		AlignClearDistance:  100,
		AntiOscCycles:       10,
		HistorySize:         20,
		OscWindow:           6,
		MaxDirectionChanges: 3,
		MaxManeuverCycles:   100,
		AvoidFast:           120,
		AvoidSlow:           40,
		ExitSpeed:           100,
		ReverseSpeed:        100,
		RotateSpeed:         100,
		AntiOscSpeed:        70,
		HysteresisSpeed:     60,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("maneuver: invalid config")

// Validate checks durations, window sizes and speeds.
func (c Config) Validate() error {
	switch {
	case c.AvoidDistance <= 0 || c.OpenDistance <= 0 || c.AlignClearDistance <= 0:
		return fmt.Errorf("%w: distances must be positive", ErrInvalidConfig)
	case c.ReverseSteps < 1 || c.AntiOscCycles < 1:
		return fmt.Errorf("%w: reverse_steps and anti_osc_cycles must be >= 1", ErrInvalidConfig)
	case c.CooldownCycles < 0:
		return fmt.Errorf("%w: cooldown_cycles must be >= 0", ErrInvalidConfig)
	case c.OscWindow < 3 || c.HistorySize < c.OscWindow:
		return fmt.Errorf("%w: need 3 <= osc_window <= history_size", ErrInvalidConfig)
	case c.MaxDirectionChanges < 1 || c.MaxDirectionChanges >= c.OscWindow:
		return fmt.Errorf("%w: max_direction_changes must be in [1, osc_window)", ErrInvalidConfig)
	case c.MaxManeuverCycles <= c.ReverseSteps:
		return fmt.Errorf("%w: max_maneuver_cycles must exceed reverse_steps", ErrInvalidConfig)
	}
	for _, s := range []int{c.AvoidFast, c.AvoidSlow, c.ExitSpeed, c.ReverseSpeed, c.RotateSpeed, c.AntiOscSpeed, c.HysteresisSpeed} {
		if s < 0 || s > action.MaxSpeed {
			return fmt.Errorf("%w: speed %d out of range", ErrInvalidConfig, s)
		}
	}
	if c.AvoidFast <= c.AvoidSlow {
		return fmt.Errorf("%w: avoid_fast must exceed avoid_slow", ErrInvalidConfig)
	}
	return nil
}
