// Package sensor holds the per-cycle sensor frame and the feature vector
// encoder used by the knowledge matcher.
package sensor

import (
	"math"
	"time"
)

// Ultrasonic range limits in millimeters (HC-SR04 practical range).
const (
	MinDistance = 20.0
	MaxDistance = 400.0
)

// Defaults used when a reading is missing or unusable.
const (
	DefaultBatteryVoltage = 7.4
	DefaultBatteryPercent = 100
	DefaultSpeed          = 100.0
)

// Frame is one cycle of sensor input.
type Frame struct {
	Front float64 `json:"front"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`

	BatteryVoltage float64 `json:"battery_voltage"`
	BatteryPercent int     `json:"battery_percent"`

	// Last applied wheel speeds as reported by the actuation layer.
	SpeedLeft  float64 `json:"speed_left"`
	SpeedRight float64 `json:"speed_right"`

	Timestamp time.Time `json:"timestamp"`
}

// Min returns the smallest of the three distances.
func (f Frame) Min() float64 {
	return math.Min(f.Front, math.Min(f.Left, f.Right))
}

// Sanitize returns a frame with every field inside its valid range.
// Unusable distances read as clear. Battery falls back to last when last
// holds a usable value, otherwise to the defaults. Speeds are optional and
// default to cruising speed.
func Sanitize(raw Frame, last *Frame) Frame {
	f := raw
	f.Front = distance(raw.Front)
	f.Left = distance(raw.Left)
	f.Right = distance(raw.Right)

	if !usable(raw.BatteryVoltage) || raw.BatteryVoltage <= 0 {
		f.BatteryVoltage = DefaultBatteryVoltage
		if last != nil && usable(last.BatteryVoltage) && last.BatteryVoltage > 0 {
			f.BatteryVoltage = last.BatteryVoltage
		}
	}
	if raw.BatteryPercent < 0 || raw.BatteryPercent > 100 {
		f.BatteryPercent = DefaultBatteryPercent
		if last != nil && last.BatteryPercent >= 0 && last.BatteryPercent <= 100 {
			f.BatteryPercent = last.BatteryPercent
		}
	}

	f.SpeedLeft = speed(raw.SpeedLeft)
	f.SpeedRight = speed(raw.SpeedRight)
	return f
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func distance(v float64) float64 {
	if !usable(v) || v <= 0 {
		return MaxDistance
	}
	return clamp(v, MinDistance, MaxDistance)
}

func speed(v float64) float64 {
	if !usable(v) {
		return DefaultSpeed
	}
	return clamp(v, -150, 150)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
