package safety

import (
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Kind classifies a fuse verdict.
type Kind int

const (
	// Pass means no rule fired.
	Pass Kind = iota
	// Emergency asks the caller to start the emergency maneuver.
	Emergency
	// Reflex is a single-cycle override.
	Reflex
	// SeekSpace is a soft bias toward the more open side.
	SeekSpace
)

func (k Kind) String() string {
	switch k {
	case Emergency:
		return "emergency"
	case Reflex:
		return "reflex"
	case SeekSpace:
		return "seek_space"
	default:
		return "pass"
	}
}

// Verdict is the fuse output. Decision is set for Reflex and SeekSpace.
type Verdict struct {
	Kind     Kind
	Rule     string
	Decision action.Decision
}

// Fuse evaluates the reflex rules.
type Fuse struct {
	cfg Config
}

// NewFuse creates a fuse with the given config.
func NewFuse(cfg Config) *Fuse {
	return &Fuse{cfg: cfg}
}

// Config returns the fuse configuration.
func (f *Fuse) Config() Config {
	return f.cfg
}

// Evaluate applies the rules in priority order.
func (f *Fuse) Evaluate(fr sensor.Frame) Verdict {
	c := f.cfg
	df, dl, dr := fr.Front, fr.Left, fr.Right

	if fr.Min() < c.EmergencyDistance {
		return Verdict{Kind: Emergency, Rule: "EMERGENCY_DISTANCE"}
	}
	if dl < c.SideCritical && dr < c.SideCritical {
		return Verdict{Kind: Emergency, Rule: "TRAPPED"}
	}

	// side collision, independent of the front reading
	if dl < c.SideCritical {
		return f.category(action.LeftBlocked, "SIDE_COLLISION_LEFT", dl, dr)
	}
	if dr < c.SideCritical {
		return f.category(action.RightBlocked, "SIDE_COLLISION_RIGHT", dl, dr)
	}

	if df < c.SharpDistance {
		return f.category(action.FrontBlocked, "FRONT_SHARP", dl, dr)
	}
	if df < c.DangerDistance {
		dir := action.EscapeToward(dl, dr)
		l, r := action.Turn(dir, c.DangerFast, c.DangerSlow)
		return Verdict{Kind: Reflex, Rule: "FRONT_DANGER", Decision: action.Decision{
			Action:     dir.TurnAction(),
			SpeedLeft:  l,
			SpeedRight: r,
			Source:     action.SourceSafety,
			Category:   action.Avoidance,
			Reason:     "FRONT_DANGER",
		}}
	}

	if diff := dl - dr; diff > c.AsymmetryThreshold || -diff > c.AsymmetryThreshold {
		dir := action.EscapeToward(dl, dr)
		l, r := action.Turn(dir, c.SeekFast, c.SeekSlow)
		return Verdict{Kind: SeekSpace, Rule: "SEEK_SPACE", Decision: action.Decision{
			Action:     action.Forward,
			SpeedLeft:  l,
			SpeedRight: r,
			Source:     action.SourceSafety,
			Category:   action.Clear,
			Reason:     "SEEK_SPACE",
		}}
	}

	return Verdict{Kind: Pass}
}

func (f *Fuse) category(c action.Category, rule string, dl, dr float64) Verdict {
	a, l, r := action.Resolve(c, dl, dr)
	return Verdict{Kind: Reflex, Rule: rule, Decision: action.Decision{
		Action:     a,
		SpeedLeft:  l,
		SpeedRight: r,
		Source:     action.SourceSafety,
		Category:   c,
		Reason:     rule,
	}}
}
