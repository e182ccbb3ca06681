package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

func sampleSnapshot() Snapshot {
	v := sensor.Encode(sensor.Sanitize(sensor.Frame{Front: 300, Left: 70, Right: 300}, nil))
	w := sensor.Encode(sensor.Sanitize(sensor.Frame{Front: 120, Left: 200, Right: 180}, nil))
	return NewSnapshot(
		map[string]float64{"avoidance": 1.3, "clear": 0.7},
		[]knowledge.Entry{
			{Label: "LEFT_WALL", Category: action.LeftBlocked, Vector: v, Hits: 3, Seq: 7},
			{Label: "avoidance", Category: action.Avoidance, Vector: w.Scale(0.5), Hits: 1, Seq: 9},
		},
	)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	js, err := NewJSONStore(filepath.Join(t.TempDir(), "json"))
	require.NoError(t, err)
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "swarm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{BackendJSON: js, BackendSQLite: sq}
}

func TestRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleSnapshot()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(0)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			snap, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.True(t, snap.Empty())
			assert.NotNil(t, snap.Weights)
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, sampleSnapshot()))
			require.NoError(t, s.Save(ctx, NewSnapshot(map[string]float64{"corridor": 1.1}, nil)))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got.Learned)
			assert.Equal(t, map[string]float64{"corridor": 1.1}, got.Weights)
		})
	}
}

func TestJSONCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LearnedFile), []byte("{broken"), 0644))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestJSONVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, WeightsFile), []byte(`{"version":99,"weights":{}}`), 0644))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendJSON, dir)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(BackendSQLite, dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", dir)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestVectorBlob(t *testing.T) {
	v := sensor.Vector{0, 1.5, -2.25, 1e-300}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorrupt)
}
