package engine

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
	"github.com/teslashibe/go-swarm/pkg/maneuver"
	"github.com/teslashibe/go-swarm/pkg/persist"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

func frame(f, l, r float64) sensor.Frame {
	return sensor.Frame{Front: f, Left: l, Right: r, BatteryVoltage: 7.6, BatteryPercent: 80, SpeedLeft: 100, SpeedRight: 100}
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Chaos.Enabled = false
	return cfg
}

func newEngine(t *testing.T, cfg Config, store persist.Store) *Engine {
	t.Helper()
	e, err := New(context.Background(), cfg, knowledge.Prototypes(), store)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestSideCollisionTurnsAway(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)

	d, err := e.Decide(frame(200, 50, 300))
	require.NoError(t, err)
	assert.Equal(t, action.TurnRight, d.Action)
	assert.Greater(t, d.SpeedLeft, d.SpeedRight)
	assert.Equal(t, action.SourceSafety, d.Source)
}

func TestCorneredStartsEmergency(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)

	d, err := e.Decide(frame(45, 40, 38))
	require.NoError(t, err)
	assert.Equal(t, action.Reverse, d.Action)
	assert.Equal(t, action.SourceManeuver, d.Source)
	st := e.Status()
	assert.Equal(t, maneuver.Emergency, st.Maneuver.Kind)
	assert.Equal(t, maneuver.Reversing, st.Maneuver.Phase)
}

func TestSafetyDominatesLearning(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)

	// pile up learned state and weights
	for i := 0; i < 60; i++ {
		e.Step(frame(300+float64(i%5), 300, 300))
	}
	require.Positive(t, e.Stats().LearnedConcepts)

	critical := []sensor.Frame{
		frame(30, 300, 300),
		frame(300, 44, 300),
		frame(300, 300, 20),
		frame(44, 44, 44),
	}
	for _, fr := range critical {
		d := e.Step(fr)
		assert.Equal(t, action.SourceManeuver, d.Source, "frame %+v", fr)
		assert.Equal(t, action.Trapped, d.Category, "frame %+v", fr)
		assert.Equal(t, maneuver.Emergency, e.Status().Maneuver.Kind)
	}
}

func TestEmergencyPreemptsAvoidance(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	d := e.Step(frame(300, 150, 250))
	require.Equal(t, action.SourceManeuver, d.Source)
	require.Equal(t, maneuver.AvoidanceTurn, e.Status().Maneuver.Kind)

	d = e.Step(frame(40, 150, 250))
	assert.Equal(t, action.Reverse, d.Action)
	assert.Equal(t, maneuver.Emergency, e.Status().Maneuver.Kind)
}

func TestDeterministic(t *testing.T) {
	frames := []sensor.Frame{
		frame(400, 300, 300), frame(380, 280, 320), frame(150, 180, 300),
		frame(200, 50, 300), frame(300, 150, 250), frame(300, 150, 280),
		frame(45, 40, 38), frame(90, 200, 220), frame(400, 400, 400),
	}
	a := newEngine(t, DefaultConfig(), nil)
	b := newEngine(t, DefaultConfig(), nil)
	for i, fr := range frames {
		da, db := a.Step(fr), b.Step(fr)
		require.Equal(t, da, db, "cycle %d", i)
	}
}

func TestAlternatingTurnsForceForward(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	for i := 0; i < 6; i++ {
		fr := frame(300, 50, 300)
		if i%2 == 1 {
			fr = frame(300, 300, 50)
		}
		d := e.Step(fr)
		require.NotEqual(t, action.None, d.Direction())
	}

	d := e.Step(frame(400, 300, 300))
	assert.Equal(t, action.Forward, d.Action)
	assert.Equal(t, action.SourceAntiOsc, d.Source)
	assert.Equal(t, d.SpeedLeft, d.SpeedRight)
	assert.Equal(t, 1, e.Stats().Maneuvers.AntiOscStarted)
}

func TestDirectionMappingConsistent(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	// left side blocked at every severity
	reflex, err := e.Decide(frame(300, 50, 260))
	require.NoError(t, err)
	require.Equal(t, action.SourceSafety, reflex.Source)

	e2 := newEngine(t, quietConfig(), nil)
	avoid, err := e2.Decide(frame(300, 150, 260))
	require.NoError(t, err)
	require.Equal(t, action.SourceManeuver, avoid.Source)

	matched, _, _ := action.Resolve(action.LeftBlocked, 150, 260)

	assert.Equal(t, action.Right, reflex.Direction())
	assert.Equal(t, action.Right, avoid.Direction())
	assert.Equal(t, action.Right, action.DirectionOf(matched))
}

func TestMissedHoldsThenStops(t *testing.T) {
	e := newEngine(t, DefaultConfig(), nil)

	d := e.Missed()
	assert.Equal(t, action.Stop, d.Action, "no prior decision")

	e2 := newEngine(t, quietConfig(), nil)
	first := e2.Step(frame(200, 50, 300))

	held := e2.Missed()
	assert.Equal(t, first.Action, held.Action)
	assert.Equal(t, first.SpeedLeft, held.SpeedLeft)
	assert.Equal(t, "HOLD", held.Reason)

	stop := e2.Missed()
	assert.Equal(t, action.Stop, stop.Action)
	assert.Equal(t, action.SourceSafety, stop.Source)

	// a fresh frame resets the miss counter
	e2.Step(frame(200, 50, 300))
	assert.Equal(t, "HOLD", e2.Missed().Reason)
}

func TestFeedbackUsesNextFrame(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	d := e.Step(frame(300, 300, 300))
	require.Equal(t, action.Forward, d.Action)
	require.Equal(t, action.SourceKnowledge, d.Source)
	assert.Zero(t, e.Stats().Feedback)

	// front closed by 50 mm: forward failed
	e.Step(frame(250, 300, 300))
	st := e.Stats()
	assert.Equal(t, uint64(1), st.Feedback)
	assert.Equal(t, uint64(1), st.Failures)
}

func TestSuccessLearnsConcept(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	d := e.Step(frame(300, 300, 300))
	require.Equal(t, action.SourceKnowledge, d.Source)
	e.Step(frame(300, 300, 300))

	st := e.Stats()
	assert.Equal(t, uint64(1), st.Successes)
	assert.Equal(t, 1, st.LearnedConcepts)
	assert.Greater(t, e.Status().Weights[d.Category.String()], 1.0)
}

func TestManualFeedback(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)
	assert.ErrorIs(t, e.Feedback(true), ErrNoPending)

	d, err := e.Decide(frame(300, 300, 300))
	require.NoError(t, err)
	require.NoError(t, e.Feedback(false))
	assert.Less(t, e.Status().Weights[d.Category.String()], 1.0)
	assert.ErrorIs(t, e.Feedback(true), ErrNoPending)
}

func TestDecideKeepsPendingFeedback(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	_, err := e.Decide(frame(300, 300, 300))
	require.NoError(t, err)
	_, err = e.Decide(frame(300, 300, 300))
	assert.ErrorIs(t, err, ErrPending)

	require.NoError(t, e.Feedback(true))
	_, err = e.Decide(frame(300, 300, 300))
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), e.Stats().Feedback)
}

func TestEmergenciesLeaveWeightsAlone(t *testing.T) {
	e := newEngine(t, quietConfig(), nil)

	open := e.Step(frame(400, 400, 400))
	require.Equal(t, action.Forward, open.Action)
	require.Equal(t, action.SourceKnowledge, open.Source)

	for round := 0; round < 3; round++ {
		d := e.Step(frame(44, 44, 44))
		require.Equal(t, maneuver.Emergency, e.Status().Maneuver.Kind)
		require.Equal(t, action.Reverse, d.Action)

		// every reverse step backs further out of the corner
		for i := 1; e.Status().Maneuver.Kind == maneuver.Emergency; i++ {
			require.Less(t, i, 40, "emergency never completed")
			dist := math.Min(44+float64(i)*5, 300)
			e.Step(frame(dist, dist, dist))
		}
		for i := 0; i < 5; i++ {
			e.Step(frame(400, 400, 400))
		}
	}

	st := e.Status()
	assert.Equal(t, 3, st.Stats.Maneuvers.EmergencyStarted)
	assert.Equal(t, 1.0, st.Weights[action.Trapped.String()])
	assert.GreaterOrEqual(t, st.Weights[action.Clear.String()], 1.0)

	d := e.Step(frame(400, 400, 400))
	assert.Equal(t, action.Forward, d.Action)
	assert.Equal(t, action.SourceKnowledge, d.Source)
	assert.Equal(t, action.Clear, d.Category)
}

func TestUncertainFallsBackForward(t *testing.T) {
	e, err := New(context.Background(), quietConfig(), nil, nil)
	require.NoError(t, err)

	d, err := e.Decide(frame(400, 400, 400))
	require.NoError(t, err)
	assert.Equal(t, action.Forward, d.Action)
	assert.Equal(t, 80, d.SpeedLeft)
	assert.Equal(t, 80, d.SpeedRight)
	assert.Equal(t, "FORWARD_UNCERTAIN", d.Reason)
	assert.True(t, e.Stats().Degraded)
}

func TestSpeedsAlwaysInRange(t *testing.T) {
	e := newEngine(t, ExplorerConfig(), nil)
	for i := 0; i < 500; i++ {
		fr := frame(float64(20+(i*37)%380), float64(20+(i*53)%380), float64(20+(i*71)%380))
		d := e.Step(fr)
		require.True(t, d.Action.Valid())
		require.LessOrEqual(t, d.SpeedLeft, action.MaxSpeed)
		require.GreaterOrEqual(t, d.SpeedLeft, action.MinSpeed)
		require.LessOrEqual(t, d.SpeedRight, action.MaxSpeed)
		require.GreaterOrEqual(t, d.SpeedRight, action.MinSpeed)
	}
}

func TestLearningPersists(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	store, err := persist.NewJSONStore(dir)
	require.NoError(t, err)

	cfg := quietConfig()
	cfg.SaveEvery = 1
	e, err := New(context.Background(), cfg, knowledge.Prototypes(), store)
	require.NoError(t, err)

	d := e.Step(frame(300, 300, 300))
	e.Step(frame(300, 300, 300))
	want := e.Status().Weights[d.Category.String()]
	require.NoError(t, e.Close(context.Background()))

	_, err = os.Stat(filepath.Join(dir, persist.LearnedFile))
	require.NoError(t, err)

	again, err := New(context.Background(), cfg, knowledge.Prototypes(), store)
	require.NoError(t, err)
	defer again.Close(context.Background())

	assert.Equal(t, 1, again.Stats().LearnedConcepts)
	assert.InDelta(t, want, again.Status().Weights[d.Category.String()], 1e-12)
}

func TestCorruptStateStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, persist.WeightsFile), []byte("garbage"), 0644))
	store, err := persist.NewJSONStore(dir)
	require.NoError(t, err)

	e := newEngine(t, quietConfig(), store)
	assert.True(t, e.Stats().Degraded)
	assert.Equal(t, 0, e.Stats().LearnedConcepts)
}

func TestConfigPresetsValid(t *testing.T) {
	for name, cfg := range map[string]Config{
		"default":  DefaultConfig(),
		"cautious": CautiousConfig(),
		"explorer": ExplorerConfig(),
	} {
		assert.NoError(t, cfg.Validate(), name)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Max = 0.1
	cfg.SaveEvery = 0

	_, err := New(context.Background(), cfg, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
