package engine

import (
	"sort"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/maneuver"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Stats counts what the engine has done since start.
type Stats struct {
	Cycles uint64 `json:"cycles"`

	SafetyDecisions    uint64 `json:"safety_decisions"`
	ManeuverDecisions  uint64 `json:"maneuver_decisions"`
	KnowledgeDecisions uint64 `json:"knowledge_decisions"`
	AntiOscDecisions   uint64 `json:"anti_osc_decisions"`
	Missed             uint64 `json:"missed"`

	Feedback    uint64  `json:"feedback"`
	Successes   uint64  `json:"successes"`
	Failures    uint64  `json:"failures"`
	SuccessRate float64 `json:"success_rate"`

	LearnedMatches  uint64 `json:"learned_matches"`
	LearnedConcepts int    `json:"learned_concepts"`
	StaticConcepts  int    `json:"static_concepts"`
	Evicted         uint64 `json:"evicted"`
	Forgotten       uint64 `json:"forgotten"`

	Maneuvers maneuver.Stats `json:"maneuvers"`
	Active    string         `json:"active_maneuver"`
	Preferred string         `json:"preferred_direction"`

	PersistSaves  uint64 `json:"persist_saves"`
	PersistErrors uint64 `json:"persist_errors"`

	// Degraded is set when the knowledge base or learning state could not
	// be loaded. Safety and maneuvers keep working.
	Degraded bool `json:"degraded"`
}

// ConceptInfo summarizes a learned concept.
type ConceptInfo struct {
	Label    string          `json:"label"`
	Category action.Category `json:"category"`
	Strength float64         `json:"strength"`
	Hits     int             `json:"hits"`
}

// Status is a point-in-time copy of engine state for diagnostics.
type Status struct {
	Stats    Stats              `json:"stats"`
	Decision *action.Decision   `json:"decision,omitempty"`
	Frame    *sensor.Frame      `json:"frame,omitempty"`
	Weights  map[string]float64 `json:"weights"`
	Learned  []ConceptInfo      `json:"learned"`
	Recent   []string           `json:"recent_turns"`
	Maneuver maneuver.State     `json:"maneuver"`
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	if s.Feedback > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.Feedback)
	}
	s.LearnedConcepts = e.learned.Len()
	s.StaticConcepts = e.matcher.StaticCount()
	s.Maneuvers = e.machine.Stats()
	s.Active = e.machine.Active().String()
	s.Preferred = e.machine.Preferred().String()
	if e.writer != nil {
		s.PersistSaves = e.writer.Saves()
		s.PersistErrors = e.writer.Errors()
	}
	return s
}

// Status returns a deep copy of the current state.
func (e *Engine) Status() Status {
	st := Status{
		Stats:    e.Stats(),
		Weights:  make(map[string]float64),
		Maneuver: e.machine.State(),
	}
	if e.lastDecision != nil {
		d := *e.lastDecision
		st.Decision = &d
	}
	if e.last != nil {
		f := *e.last
		st.Frame = &f
	}
	for _, c := range action.Categories() {
		st.Weights[c.String()] = e.weights.Get(c)
	}
	for _, en := range e.learned.Entries() {
		st.Learned = append(st.Learned, ConceptInfo{
			Label:    en.Label,
			Category: en.Category,
			Strength: en.Vector.Norm(),
			Hits:     en.Hits,
		})
	}
	sort.SliceStable(st.Learned, func(i, j int) bool { return st.Learned[i].Strength > st.Learned[j].Strength })
	for _, d := range e.machine.Recent() {
		st.Recent = append(st.Recent, d.String())
	}
	return st
}
