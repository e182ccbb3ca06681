package weights

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-swarm/pkg/action"
)

func TestDefaultWeight(t *testing.T) {
	tbl := New(DefaultConfig())
	assert.Equal(t, 1.0, tbl.Get(action.Corridor))
}

func TestSuccessIncreasesUntilClamped(t *testing.T) {
	tbl := New(DefaultConfig())

	prev := tbl.Get(action.Avoidance)
	for i := 0; i < 10; i++ {
		w := tbl.Update(action.Avoidance, true)
		require.Greater(t, w, prev, "update %d", i)
		prev = w
	}
	assert.InDelta(t, math.Pow(1.05, 10), prev, 1e-9)

	for i := 0; i < 100; i++ {
		tbl.Update(action.Avoidance, true)
	}
	assert.Equal(t, 2.0, tbl.Get(action.Avoidance))
}

func TestFailureClampsAtMin(t *testing.T) {
	tbl := New(DefaultConfig())
	for i := 0; i < 200; i++ {
		w := tbl.Update(action.Clear, false)
		require.GreaterOrEqual(t, w, 0.5)
	}
	assert.Equal(t, 0.5, tbl.Get(action.Clear))
}

func TestWeightsAlwaysBounded(t *testing.T) {
	tbl := New(DefaultConfig())
	// deterministic mixed sequence
	for i := 0; i < 1000; i++ {
		ok := (i*7+3)%5 < 3
		w := tbl.Update(action.Category(i%len(action.Categories())), ok)
		require.True(t, w >= 0.5 && w <= 2.0, "weight %v out of bounds", w)
	}
}

func TestSnapshotRestore(t *testing.T) {
	tbl := New(DefaultConfig())
	tbl.Update(action.LeftBlocked, true)
	tbl.Update(action.Trapped, false)

	snap := tbl.Snapshot()
	snap["bogus"] = 1.2
	snap["corridor"] = 9 // clamped on restore

	other := New(DefaultConfig())
	skipped := other.Restore(snap)

	assert.Equal(t, []string{"bogus"}, skipped)
	assert.Equal(t, tbl.Get(action.LeftBlocked), other.Get(action.LeftBlocked))
	assert.Equal(t, tbl.Get(action.Trapped), other.Get(action.Trapped))
	assert.Equal(t, 2.0, other.Get(action.Corridor))
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Penalty = 1.2
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.Default = 3
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}
