package engine

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-swarm/pkg/chaos"
	"github.com/teslashibe/go-swarm/pkg/feedback"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
	"github.com/teslashibe/go-swarm/pkg/maneuver"
	"github.com/teslashibe/go-swarm/pkg/safety"
	"github.com/teslashibe/go-swarm/pkg/weights"
)

// Config holds every tunable parameter of the engine. It is validated once
// in New and never changes afterwards.
type Config struct {
	Safety    safety.Config    `yaml:"safety"`
	Knowledge knowledge.Config `yaml:"knowledge"`
	Weights   weights.Config   `yaml:"weights"`
	Chaos     chaos.Config     `yaml:"chaos"`
	Maneuver  maneuver.Config  `yaml:"maneuver"`
	Feedback  feedback.Config  `yaml:"feedback"`

	// SaveEvery persists learning after this many feedback events.
	SaveEvery int `yaml:"save_every"`

	// SummaryEvery logs a learning summary after this many feedback events.
	SummaryEvery int `yaml:"summary_every"`
}

// DefaultConfig returns the recommended configuration for a 20 Hz loop
func DefaultConfig() Config {
	return Config{
		Safety:       safety.DefaultConfig(),
		Knowledge:    knowledge.DefaultConfig(),
		Weights:      weights.DefaultConfig(),
		Chaos:        chaos.DefaultConfig(),
		Maneuver:     maneuver.DefaultConfig(),
		Feedback:     feedback.DefaultConfig(),
		SaveEvery:    20,
		SummaryEvery: 50,
	}
}

// CautiousConfig returns a configuration for cluttered rooms: wider
// safety margins, no chaos, longer reversing.
func CautiousConfig() Config {
	cfg := DefaultConfig()
	cfg.Safety.EmergencyDistance = 50
	cfg.Safety.SideCritical = 80
	cfg.Safety.SharpDistance = 130
	cfg.Safety.DangerDistance = 200
	cfg.Chaos.Enabled = false
	cfg.Maneuver.ReverseSteps = 30
	cfg.Maneuver.AvoidDistance = 250
	return cfg
}

// ExplorerConfig returns a configuration for open floors: more chaos and
// faster learning.
func ExplorerConfig() Config {
	cfg := DefaultConfig()
	cfg.Chaos.Intensity = 1.0
	cfg.Chaos.DisableDistance = 150
	cfg.Knowledge.LearningRate = 0.25
	cfg.Maneuver.AntiOscCycles = 6
	return cfg
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("engine: invalid config")

// Validate checks every section.
func (c Config) Validate() error {
	errs := []error{
		c.Safety.Validate(),
		c.Knowledge.Validate(),
		c.Weights.Validate(),
		c.Chaos.Validate(),
		c.Maneuver.Validate(),
		c.Feedback.Validate(),
	}
	if c.SaveEvery < 1 {
		errs = append(errs, errors.New("save_every must be >= 1"))
	}
	if c.SummaryEvery < 1 {
		errs = append(errs, errors.New("summary_every must be >= 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
