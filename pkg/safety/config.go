// Package safety implements the reflex layer that runs before any learned
// behavior. Its rules depend only on the current distances.
package safety

import (
	"errors"
	"fmt"
)

// Config holds the fuse thresholds in millimeters.
type Config struct {
	// EmergencyDistance starts an emergency maneuver when any distance is below it.
	EmergencyDistance float64 `yaml:"emergency_distance"`

	// SideCritical is the side distance that forces a turn away from that side.
	// Both sides below it count as trapped.
	SideCritical float64 `yaml:"side_critical"`

	// SharpDistance triggers a hard turn when the front is closer.
	SharpDistance float64 `yaml:"sharp_distance"`

	// DangerDistance triggers a gentler turn when the front is closer.
	DangerDistance float64 `yaml:"danger_distance"`

	// AsymmetryThreshold biases forward travel toward the open side when
	// the sides differ by more than this.
	AsymmetryThreshold float64 `yaml:"asymmetry_threshold"`

	// SeekFast and SeekSlow are the wheel speeds used while seeking space.
	SeekFast int `yaml:"seek_fast"`
	SeekSlow int `yaml:"seek_slow"`

	// DangerFast and DangerSlow are the wheel speeds of the danger turn.
	DangerFast int `yaml:"danger_fast"`
	DangerSlow int `yaml:"danger_slow"`
}

// DefaultConfig returns thresholds tuned for a 220 mm wide chassis with
// HC-SR04 sensors.
func DefaultConfig() Config {
	return Config{
		EmergencyDistance:  45,
		SideCritical:       60,
		SharpDistance:      100,
		DangerDistance:     150,
		AsymmetryThreshold: 60,
		SeekFast:           130,
		SeekSlow:           80,
		DangerFast:         90,
		DangerSlow:         50,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("safety: invalid config")

// Validate checks that thresholds are ordered and speeds are in range.
func (c Config) Validate() error {
	switch {
	case c.EmergencyDistance <= 0:
		return fmt.Errorf("%w: emergency_distance must be positive", ErrInvalidConfig)
	case c.SideCritical < c.EmergencyDistance:
		return fmt.Errorf("%w: side_critical below emergency_distance", ErrInvalidConfig)
	case c.SharpDistance < c.EmergencyDistance:
		return fmt.Errorf("%w: sharp_distance below emergency_distance", ErrInvalidConfig)
	case c.DangerDistance < c.SharpDistance:
		return fmt.Errorf("%w: danger_distance below sharp_distance", ErrInvalidConfig)
	case c.AsymmetryThreshold <= 0:
		return fmt.Errorf("%w: asymmetry_threshold must be positive", ErrInvalidConfig)
	}
	for _, s := range []int{c.SeekFast, c.SeekSlow, c.DangerFast, c.DangerSlow} {
		if s < 0 || s > 150 {
			return fmt.Errorf("%w: speed %d out of range", ErrInvalidConfig, s)
		}
	}
	if c.SeekFast < c.SeekSlow || c.DangerFast < c.DangerSlow {
		return fmt.Errorf("%w: fast speed below slow speed", ErrInvalidConfig)
	}
	return nil
}
