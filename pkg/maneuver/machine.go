package maneuver

import (
	"log/slog"
	"math"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Stats counts maneuver lifecycle events.
type Stats struct {
	AvoidanceStarted int `json:"avoidance_started"`
	EmergencyStarted int `json:"emergency_started"`
	AntiOscStarted   int `json:"anti_osc_started"`
	Completed        int `json:"completed"`
	Forced           int `json:"forced"`
	Refused          int `json:"refused"`
}

// Machine owns the maneuver state and the turn history. Not safe for
// concurrent use; the engine owns it.
type Machine struct {
	cfg     Config
	state   State
	history *History
	cycle   uint64

	// last maneuver end, for hysteresis
	lastDir   action.Direction
	lastCycle uint64
	ended     bool

	stats  Stats
	logger *slog.Logger
}

// New creates an idle machine.
func New(cfg Config) *Machine {
	return &Machine{
		cfg:     cfg,
		history: NewHistory(cfg.HistorySize),
		logger:  log.Component("maneuver"),
	}
}

// State returns the current maneuver state.
func (m *Machine) State() State {
	return m.state
}

// Active returns the kind of the running maneuver, Idle if none.
func (m *Machine) Active() Kind {
	return m.state.Kind
}

// Stats returns the lifecycle counters.
func (m *Machine) Stats() Stats {
	return m.stats
}

// Recent returns the recorded turn directions, oldest first.
func (m *Machine) Recent() []action.Direction {
	return m.history.Last(m.history.Len())
}

// Preferred returns the direction chosen at least three times in a row
// most recently, or None.
func (m *Machine) Preferred() action.Direction {
	d, n := m.history.Streak()
	if n >= 3 {
		return d
	}
	return action.None
}

// Tick starts a new cycle. It ages the running maneuver and forcibly ends
// it once it has run longer than MaxManeuverCycles, returning true in that
// case.
func (m *Machine) Tick() bool {
	m.cycle++
	if m.state.Kind == Idle {
		return false
	}
	m.state.Age++
	if m.state.Age > m.cfg.MaxManeuverCycles {
		m.logger.Warn("maneuver forcibly terminated", "kind", m.state.Kind, "age", m.state.Age)
		m.stats.Forced++
		m.exit()
		return true
	}
	return false
}

// Record adds a decision's turn direction to the history.
func (m *Machine) Record(d action.Decision) {
	m.history.Push(d.Direction())
}

// Step advances the running maneuver by one cycle and returns its decision.
func (m *Machine) Step(fr sensor.Frame) action.Decision {
	switch m.state.Kind {
	case Emergency:
		return m.stepEmergency(fr)
	case AvoidanceTurn:
		return m.stepAvoidance(fr)
	case AntiOscillation:
		return m.stepAntiOsc()
	default:
		return action.StopDecision(action.SourceManeuver, "IDLE")
	}
}

// StartEmergency replaces any running maneuver with an emergency escape
// and returns its first step. Emergencies are never refused.
func (m *Machine) StartEmergency(fr sensor.Frame, rule string) action.Decision {
	if m.state.Kind == Emergency {
		return m.Step(fr)
	}
	if m.state.Kind != Idle {
		m.logger.Info("maneuver preempted", "kind", m.state.Kind, "by", Emergency)
	}
	m.state = State{Kind: Emergency, Phase: Reversing}
	m.stats.EmergencyStarted++
	m.logger.Info("maneuver started", "kind", Emergency, "rule", rule,
		"front", fr.Front, "left", fr.Left, "right", fr.Right)
	return m.stepEmergency(fr)
}

// DetectOscillation enters anti-oscillation when the machine is idle and
// the recent turns flip back and forth. The history is cleared on entry.
func (m *Machine) DetectOscillation() bool {
	if m.state.Kind != Idle {
		return false
	}
	if !m.history.Oscillating(m.cfg.OscWindow, m.cfg.MaxDirectionChanges) {
		return false
	}
	m.logger.Info("oscillation detected", "recent", m.history.Last(m.cfg.OscWindow))
	m.history.Clear()
	m.state = State{Kind: AntiOscillation, Remaining: m.cfg.AntiOscCycles}
	m.stats.AntiOscStarted++
	return true
}

// TryAvoidance starts an avoidance turn when one side is moderately
// blocked. It returns false when the start condition does not hold. An
// opposite-direction start inside the cooldown window is refused and
// replaced with a slow forward decision.
func (m *Machine) TryAvoidance(fr sensor.Frame) (action.Decision, bool) {
	c := m.cfg
	if m.state.Kind != Idle {
		return action.Decision{}, false
	}
	if fr.Left >= c.AvoidDistance && fr.Right >= c.AvoidDistance {
		return action.Decision{}, false
	}
	if math.Abs(fr.Left-fr.Right) <= c.AvoidMinAsymmetry {
		return action.Decision{}, false
	}

	dir := action.EscapeToward(fr.Left, fr.Right)
	if m.refused(dir) {
		m.stats.Refused++
		m.logger.Debug("avoidance refused by hysteresis", "dir", dir, "last", m.lastDir)
		return action.Decision{
			Action:     action.Forward,
			SpeedLeft:  c.HysteresisSpeed,
			SpeedRight: c.HysteresisSpeed,
			Source:     action.SourceAntiOsc,
			Category:   action.Normal,
			Reason:     "HYSTERESIS",
		}, true
	}

	m.state = State{Kind: AvoidanceTurn, Turn: dir, Blocked: dir.Opposite(), StartTarget: side(fr, dir)}
	m.stats.AvoidanceStarted++
	m.logger.Info("maneuver started", "kind", AvoidanceTurn, "dir", dir, "blocked", m.state.Blocked, "target", m.state.StartTarget)
	return m.turn(dir, "AVOID_START"), true
}

// Reset returns the machine to idle and forgets history.
func (m *Machine) Reset() {
	m.state = State{}
	m.history.Clear()
	m.ended = false
}

func (m *Machine) refused(dir action.Direction) bool {
	if !m.ended || m.lastDir == action.None || dir != m.lastDir.Opposite() {
		return false
	}
	return m.cycle-m.lastCycle < uint64(m.cfg.CooldownCycles)
}

func (m *Machine) stepAvoidance(fr sensor.Frame) action.Decision {
	dir := m.state.Turn
	target := side(fr, dir)
	if target-m.state.StartTarget >= m.cfg.ImproveMargin || target > m.cfg.OpenDistance {
		m.logger.Info("maneuver completed", "kind", AvoidanceTurn, "dir", dir, "target", target)
		m.stats.Completed++
		m.exit()
		return action.Decision{
			Action:     action.Forward,
			SpeedLeft:  m.cfg.ExitSpeed,
			SpeedRight: m.cfg.ExitSpeed,
			Source:     action.SourceManeuver,
			Category:   action.Avoidance,
			Reason:     "AVOID_COMPLETE",
		}
	}
	m.state.Steps++
	return m.turn(dir, "AVOID_TURN")
}

func (m *Machine) turn(dir action.Direction, reason string) action.Decision {
	l, r := action.Turn(dir, m.cfg.AvoidFast, m.cfg.AvoidSlow)
	return action.Decision{
		Action:     dir.TurnAction(),
		SpeedLeft:  l,
		SpeedRight: r,
		Source:     action.SourceManeuver,
		Category:   action.Avoidance,
		Reason:     reason,
	}
}

func (m *Machine) stepEmergency(fr sensor.Frame) action.Decision {
	if m.state.Phase == Reversing {
		m.state.Steps++
		if m.state.Steps >= m.cfg.ReverseSteps {
			m.state.Phase = Aligning
			m.state.Steps = 0
		}
		return action.Decision{
			Action:     action.Reverse,
			SpeedLeft:  -m.cfg.ReverseSpeed,
			SpeedRight: -m.cfg.ReverseSpeed,
			Source:     action.SourceManeuver,
			Category:   action.Trapped,
			Reason:     "EMERGENCY_REVERSE",
		}
	}

	if fr.Left > m.cfg.AlignClearDistance && fr.Right > m.cfg.AlignClearDistance {
		m.logger.Info("maneuver completed", "kind", Emergency, "left", fr.Left, "right", fr.Right)
		m.stats.Completed++
		m.exit()
		return action.Decision{
			Action:   action.Stop,
			Source:   action.SourceManeuver,
			Category: action.Trapped,
			Reason:   "SAFE_REACHED",
		}
	}

	// rotate in place toward the more open side
	dir := action.EscapeToward(fr.Left, fr.Right)
	m.state.Turn = dir
	m.state.Steps++
	l, r := action.Turn(dir, m.cfg.RotateSpeed, -m.cfg.RotateSpeed)
	return action.Decision{
		Action:     dir.TurnAction(),
		SpeedLeft:  l,
		SpeedRight: r,
		Source:     action.SourceManeuver,
		Category:   action.Trapped,
		Reason:     "EMERGENCY_ALIGN",
	}
}

func (m *Machine) stepAntiOsc() action.Decision {
	m.state.Remaining--
	if m.state.Remaining <= 0 {
		m.stats.Completed++
		m.exit()
	}
	return action.Decision{
		Action:     action.Forward,
		SpeedLeft:  m.cfg.AntiOscSpeed,
		SpeedRight: m.cfg.AntiOscSpeed,
		Source:     action.SourceAntiOsc,
		Category:   action.Normal,
		Reason:     "ANTI_OSC",
	}
}

func (m *Machine) exit() {
	if m.state.Turn != action.None {
		m.lastDir = m.state.Turn
		m.lastCycle = m.cycle
		m.ended = true
	}
	m.state = State{}
}

func side(fr sensor.Frame, dir action.Direction) float64 {
	if dir == action.Left {
		return fr.Left
	}
	return fr.Right
}
