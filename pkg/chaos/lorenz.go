// Package chaos adds a small deterministic wobble to forward travel using a
// Lorenz attractor, so the robot does not trace the same line forever.
package chaos

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-swarm/pkg/action"
)

// Config controls the attractor and how much it may nudge the wheels.
type Config struct {
	Enabled bool `yaml:"enabled"`

	Sigma float64 `yaml:"sigma"`
	Rho   float64 `yaml:"rho"`
	Beta  float64 `yaml:"beta"`
	DT    float64 `yaml:"dt"`

	// Amplitude is the largest nudge in speed units before Intensity scaling.
	Amplitude float64 `yaml:"amplitude"`
	Intensity float64 `yaml:"intensity"`

	// DisableDistance turns perturbation off when any distance is closer.
	DisableDistance float64 `yaml:"disable_distance"`
}

// DefaultConfig returns the classic Lorenz parameters.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		Sigma:           10,
		Rho:             28,
		Beta:            8.0 / 3.0,
		DT:              0.01,
		Amplitude:       20,
		Intensity:       0.5,
		DisableDistance: 120,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("chaos: invalid config")

// Validate checks the integration step and nudge bounds.
func (c Config) Validate() error {
	switch {
	case c.DT <= 0 || c.DT > 0.05:
		return fmt.Errorf("%w: dt must be in (0, 0.05]", ErrInvalidConfig)
	case c.Amplitude < 0 || c.Amplitude > 50:
		return fmt.Errorf("%w: amplitude must be in [0, 50]", ErrInvalidConfig)
	case c.Intensity < 0 || c.Intensity > 1:
		return fmt.Errorf("%w: intensity must be in [0, 1]", ErrInvalidConfig)
	case c.DisableDistance < 0:
		return fmt.Errorf("%w: disable_distance must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// State is the attractor position.
type State struct {
	X, Y, Z float64
}

// Generator integrates the attractor one step per cycle.
type Generator struct {
	cfg   Config
	state State
}

// New creates a generator at the standard initial state.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg, state: State{X: 0.1, Y: 0.2, Z: 0.3}}
}

// State returns the current attractor position.
func (g *Generator) State() State {
	return g.state
}

// Step advances the attractor by one explicit Euler step.
func (g *Generator) Step() {
	s := g.state
	dx := g.cfg.Sigma * (s.Y - s.X)
	dy := s.X*(g.cfg.Rho-s.Z) - s.Y
	dz := s.X*s.Y - g.cfg.Beta*s.Z
	g.state = State{
		X: s.X + dx*g.cfg.DT,
		Y: s.Y + dy*g.cfg.DT,
		Z: s.Z + dz*g.cfg.DT,
	}
}

// Normalized returns the state squashed into (-1, 1).
func (g *Generator) Normalized() (x, y, z float64) {
	return math.Tanh(g.state.X / 20), math.Tanh(g.state.Y / 25), math.Tanh(g.state.Z / 30)
}

// Perturb nudges a FORWARD decision's wheels in opposite directions.
// Other actions, and any decision near an obstacle, pass through unchanged.
func (g *Generator) Perturb(d action.Decision, minDistance float64) action.Decision {
	if !g.cfg.Enabled || d.Action != action.Forward || minDistance < g.cfg.DisableDistance {
		return d
	}
	x, _, _ := g.Normalized()
	delta := int(math.Round(x * g.cfg.Amplitude * g.cfg.Intensity))
	d.SpeedLeft = action.ClampSpeed(d.SpeedLeft + delta)
	d.SpeedRight = action.ClampSpeed(d.SpeedRight - delta)
	return d
}

// MaxNudge is the largest absolute change Perturb can apply to one wheel.
func (g *Generator) MaxNudge() int {
	return int(math.Ceil(g.cfg.Amplitude * g.cfg.Intensity))
}
