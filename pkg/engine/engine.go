// Package engine composes the decision layers into one per-cycle pipeline.
//
// Each cycle runs, in order: sensor sanitization and encoding, the safety
// fuse, the maneuver state machine, the knowledge matcher weighted by
// category, and forward-only chaos. Feedback for cycle N-1's decision is
// evaluated against cycle N's frame before cycle N decides.
//
// An Engine is owned by a single goroutine. Diagnostics read copies via
// Status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/chaos"
	"github.com/teslashibe/go-swarm/pkg/feedback"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
	"github.com/teslashibe/go-swarm/pkg/maneuver"
	"github.com/teslashibe/go-swarm/pkg/persist"
	"github.com/teslashibe/go-swarm/pkg/safety"
	"github.com/teslashibe/go-swarm/pkg/sensor"
	"github.com/teslashibe/go-swarm/pkg/weights"
)

var (
	// ErrNoPending is returned by Feedback when no decision awaits an outcome.
	ErrNoPending = errors.New("engine: no decision awaiting feedback")
	// ErrPending is returned by Decide while an earlier decision still
	// awaits its outcome.
	ErrPending = errors.New("engine: previous decision awaits feedback")
)

// pending is a decision waiting for the frame that shows its outcome.
type pending struct {
	frame    sensor.Frame
	vector   sensor.Vector
	decision action.Decision
}

// Engine is the decision context. All mutable state lives here.
type Engine struct {
	cfg Config

	fuse    *safety.Fuse
	matcher *knowledge.Matcher
	learned *knowledge.LearnedStore
	weights *weights.Table
	chaos   *chaos.Generator
	machine *maneuver.Machine
	eval    *feedback.Evaluator

	store  persist.Store
	writer *persist.Writer

	cycle        uint64
	last         *sensor.Frame
	lastDecision *action.Decision
	pending      *pending
	missed       int

	stats  Stats
	logger *slog.Logger
}

// New validates cfg and builds an engine over the given static concepts.
// When store is non-nil, previously learned state is restored from it and
// new learning is saved to it. A failed restore starts from defaults.
func New(ctx context.Context, cfg Config, static []knowledge.Concept, store persist.Store) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	learned := knowledge.NewLearnedStore(cfg.Knowledge)
	e := &Engine{
		cfg:     cfg,
		fuse:    safety.NewFuse(cfg.Safety),
		matcher: knowledge.NewMatcher(cfg.Knowledge, static, learned),
		learned: learned,
		weights: weights.New(cfg.Weights),
		chaos:   chaos.New(cfg.Chaos),
		machine: maneuver.New(cfg.Maneuver),
		eval:    feedback.NewEvaluator(cfg.Feedback),
		store:   store,
		logger:  log.Component("engine"),
	}

	if len(static) == 0 {
		e.stats.Degraded = true
		e.logger.Warn("knowledge base empty, running on safety and maneuvers only")
	}

	if store != nil {
		e.restore(ctx)
		e.writer = persist.NewWriter(store)
	}

	e.logger.Info("engine ready",
		"static", len(static),
		"learned", e.learned.Len(),
		"chaos", cfg.Chaos.Enabled,
	)
	return e, nil
}

func (e *Engine) restore(ctx context.Context) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		e.stats.Degraded = true
		e.logger.Warn("learning state unreadable, starting fresh", "error", err)
		return
	}
	if skipped := e.weights.Restore(snap.Weights); len(skipped) > 0 {
		e.logger.Warn("skipped unknown weight categories", "categories", skipped)
	}
	if n := e.learned.Restore(snap.Learned); n > 0 {
		e.logger.Warn("skipped learned concepts", "count", n)
	}
	if !snap.Empty() {
		e.logger.Info("learning restored", "snapshot", snap.ID, "saved_at", snap.SavedAt, "learned", e.learned.Len())
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Step runs one full cycle: it judges the previous decision against this
// frame, then decides. Use it when frames arrive after the previous
// decision was actuated.
func (e *Engine) Step(raw sensor.Frame) action.Decision {
	fr := e.accept(raw)
	if e.pending != nil {
		p := *e.pending
		e.pending = nil
		e.learn(p, e.eval.Success(p.frame, fr, p.decision.Action))
	}
	return e.decide(fr)
}

// Decide produces a one-shot decision for raw. It refuses to run while a
// previous decision is unjudged; call Feedback first, or use Step.
func (e *Engine) Decide(raw sensor.Frame) (action.Decision, error) {
	if e.pending != nil {
		return action.Decision{}, ErrPending
	}
	return e.decide(e.accept(raw)), nil
}

// Feedback applies an externally observed outcome to the pending decision.
func (e *Engine) Feedback(success bool) error {
	if e.pending == nil {
		return ErrNoPending
	}
	p := *e.pending
	e.pending = nil
	e.learn(p, success)
	return nil
}

// Missed is called when no frame arrived within the cycle deadline. The
// first miss holds the last decision; any further miss stops the robot.
// Missed cycles do not advance maneuvers and create no feedback.
func (e *Engine) Missed() action.Decision {
	e.missed++
	e.stats.Missed++
	e.cycle++

	if e.missed == 1 && e.lastDecision != nil {
		d := *e.lastDecision
		d.Reason = "HOLD"
		d.Cycle = e.cycle
		return d
	}
	if e.missed == 2 {
		e.logger.Warn("sensor input lost, stopping")
	}
	d := action.StopDecision(action.SourceSafety, "INPUT_TIMEOUT")
	d.Cycle = e.cycle
	e.lastDecision = &d
	return d
}

func (e *Engine) accept(raw sensor.Frame) sensor.Frame {
	fr := sensor.Sanitize(raw, e.last)
	e.last = &fr
	e.missed = 0
	return fr
}

func (e *Engine) decide(fr sensor.Frame) action.Decision {
	e.cycle++
	e.machine.Tick()
	e.chaos.Step()

	vec := sensor.Encode(fr)
	verdict := e.fuse.Evaluate(fr)

	var d action.Decision
	switch {
	case e.machine.Active() == maneuver.Emergency:
		d = e.machine.Step(fr)
	case verdict.Kind == safety.Emergency:
		d = e.machine.StartEmergency(fr, verdict.Rule)
	default:
		e.machine.DetectOscillation()
		d = e.normal(fr, vec, verdict)
	}

	d = d.Clamped()
	d.Cycle = e.cycle
	e.machine.Record(d)
	e.count(d)

	e.lastDecision = &d
	e.pending = &pending{frame: fr, vector: vec, decision: d}

	e.logger.Debug("decision",
		"cycle", d.Cycle,
		"action", d.Action,
		"left", d.SpeedLeft,
		"right", d.SpeedRight,
		"source", d.Source,
		"category", d.Category,
		"concept", d.Concept,
	)
	return d
}

// normal picks a decision when no emergency is in play.
func (e *Engine) normal(fr sensor.Frame, vec sensor.Vector, v safety.Verdict) action.Decision {
	if v.Kind == safety.Reflex {
		return v.Decision
	}
	if e.machine.Active() != maneuver.Idle {
		return e.machine.Step(fr)
	}
	if d, ok := e.machine.TryAvoidance(fr); ok {
		return d
	}
	if v.Kind == safety.SeekSpace {
		return v.Decision
	}
	return e.match(fr, vec)
}

func (e *Engine) match(fr sensor.Frame, vec sensor.Vector) action.Decision {
	m := e.matcher.Match(vec, e.weights)
	a, l, r := action.Resolve(m.Category, fr.Left, fr.Right)

	d := action.Decision{
		Action:     a,
		SpeedLeft:  l,
		SpeedRight: r,
		Source:     action.SourceKnowledge,
		Category:   m.Category,
		Concept:    m.Concept,
		Learned:    m.Origin == knowledge.Learned,
		Similarity: m.Similarity,
	}
	if !m.Confident {
		d.Reason = "FORWARD_UNCERTAIN"
	}
	if m.Origin == knowledge.Learned {
		e.stats.LearnedMatches++
	}
	return e.chaos.Perturb(d, fr.Min())
}

func (e *Engine) count(d action.Decision) {
	e.stats.Cycles = e.cycle
	switch d.Source {
	case action.SourceSafety:
		e.stats.SafetyDecisions++
	case action.SourceManeuver:
		e.stats.ManeuverDecisions++
	case action.SourceKnowledge:
		e.stats.KnowledgeDecisions++
	case action.SourceAntiOsc:
		e.stats.AntiOscDecisions++
	}
}

// learn applies one outcome. Only knowledge matches move the category
// weight; reflexes also teach concept vectors. Maneuver and
// anti-oscillation outcomes are counted and nothing more.
func (e *Engine) learn(p pending, success bool) {
	d := p.decision
	e.stats.Feedback++
	if success {
		e.stats.Successes++
	} else {
		e.stats.Failures++
	}

	w := e.weights.Get(d.Category)
	if d.Source == action.SourceKnowledge {
		w = e.weights.Update(d.Category, success)
	}

	if d.Source == action.SourceKnowledge || d.Source == action.SourceSafety {
		label := d.Concept
		if label == "" {
			label = d.Category.String()
		}
		if success {
			if ev := e.learned.Upsert(label, d.Category, p.vector); ev != "" {
				e.stats.Evicted++
				e.logger.Debug("learned concept evicted", "label", ev)
			}
		} else if _, removed := e.learned.Decay(label); removed {
			e.stats.Forgotten++
			e.logger.Info("learned concept forgotten", "label", label)
		}
	}

	e.logger.Debug("feedback",
		"success", success,
		"action", d.Action,
		"category", d.Category,
		"weight", w,
	)

	n := e.stats.Feedback
	if e.writer != nil && n%uint64(e.cfg.SaveEvery) == 0 {
		e.writer.Submit(e.snapshot())
	}
	if n%uint64(e.cfg.SummaryEvery) == 0 {
		s := e.Stats()
		e.logger.Info("learning summary",
			"feedback", s.Feedback,
			"success_rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100),
			"learned", s.LearnedConcepts,
			"learned_matches", s.LearnedMatches,
		)
	}
}

func (e *Engine) snapshot() persist.Snapshot {
	return persist.NewSnapshot(e.weights.Snapshot(), e.learned.Entries())
}

// Save writes learning state synchronously.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(ctx, e.snapshot())
}

// Close flushes pending writes and saves the final learning state. The
// store itself is left open for its owner to close.
func (e *Engine) Close(ctx context.Context) error {
	if e.writer == nil {
		return nil
	}
	final := e.snapshot()
	if err := e.writer.Close(ctx, &final); err != nil {
		return fmt.Errorf("save learning state: %w", err)
	}
	e.logger.Info("learning saved", "learned", e.learned.Len(), "feedback", e.stats.Feedback)
	return nil
}
