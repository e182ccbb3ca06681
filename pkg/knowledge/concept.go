// Package knowledge holds the concept stores and the matcher that turns a
// feature vector into a category.
//
// Static concepts come from a read-only knowledge base file. Learned
// concepts are built online from feedback and live in a bounded store.
package knowledge

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Origin tells which store a concept came from.
type Origin string

const (
	Static  Origin = "STATIC"
	Learned Origin = "LEARNED"
)

// Concept is a labeled prototype vector.
type Concept struct {
	Label    string
	Category action.Category
	Vector   sensor.Vector
	Origin   Origin
}

// Config holds matcher thresholds and learned store parameters.
type Config struct {
	// MatchThreshold is the minimum weighted score for a static match.
	MatchThreshold float64 `yaml:"match_threshold"`

	// LearnedThreshold is the minimum raw similarity for a learned match.
	LearnedThreshold float64 `yaml:"learned_threshold"`

	// MaxLearned caps the learned store.
	MaxLearned int `yaml:"max_learned"`

	// LearningRate is the EMA rate used when reinforcing a learned vector.
	LearningRate float64 `yaml:"learning_rate"`

	// DecayFactor scales a learned vector on failure.
	DecayFactor float64 `yaml:"decay_factor"`

	// DeleteBelow removes a learned concept once its norm falls under it.
	DeleteBelow float64 `yaml:"delete_below"`
}

// DefaultConfig returns the standard matcher settings.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:   0.5,
		LearnedThreshold: 0.6,
		MaxLearned:       500,
		LearningRate:     0.15,
		DecayFactor:      0.95,
		DeleteBelow:      0.1,
	}
}

// Errors returned by this package.
var (
	ErrInvalidConfig = errors.New("knowledge: invalid config")
	ErrBadVersion    = errors.New("knowledge: unsupported knowledge base version")
	ErrDimension     = errors.New("knowledge: vector dimension mismatch")
)

// Validate checks thresholds and rates.
func (c Config) Validate() error {
	switch {
	case c.MatchThreshold < 0 || c.MatchThreshold > 2:
		return fmt.Errorf("%w: match_threshold out of range", ErrInvalidConfig)
	case c.LearnedThreshold < 0 || c.LearnedThreshold > 1:
		return fmt.Errorf("%w: learned_threshold out of range", ErrInvalidConfig)
	case c.MaxLearned < 1:
		return fmt.Errorf("%w: max_learned must be positive", ErrInvalidConfig)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0, 1]", ErrInvalidConfig)
	case c.DecayFactor <= 0 || c.DecayFactor >= 1:
		return fmt.Errorf("%w: decay_factor must be in (0, 1)", ErrInvalidConfig)
	case c.DeleteBelow <= 0 || c.DeleteBelow >= 1:
		return fmt.Errorf("%w: delete_below must be in (0, 1)", ErrInvalidConfig)
	}
	return nil
}
