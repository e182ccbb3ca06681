package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teslashibe/go-swarm/pkg/knowledge"
)

// File names inside the data directory.
const (
	LearnedFile = "learned_vectors.json"
	WeightsFile = "category_weights.json"
)

const currentVersion = 1

type learnedData struct {
	Version   int               `json:"version"`
	ID        string            `json:"id"`
	UpdatedAt string            `json:"updated_at"`
	Concepts  []knowledge.Entry `json:"concepts"`
}

type weightsData struct {
	Version   int                `json:"version"`
	ID        string             `json:"id"`
	UpdatedAt string             `json:"updated_at"`
	Weights   map[string]float64 `json:"weights"`
}

// JSONStore implements Store with two JSON files in a directory.
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore creates a store in dir, creating the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *JSONStore) Dir() string {
	return s.dir
}

// Load reads both files. A missing file counts as empty.
func (s *JSONStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Weights: map[string]float64{}}

	var ld learnedData
	found, err := readJSON(filepath.Join(s.dir, LearnedFile), &ld)
	if err != nil {
		return Snapshot{}, err
	}
	if found {
		if ld.Version != currentVersion {
			return Snapshot{}, fmt.Errorf("%w: %s version %d", ErrCorrupt, LearnedFile, ld.Version)
		}
		snap.ID = ld.ID
		snap.Learned = ld.Concepts
		snap.SavedAt = parseTime(ld.UpdatedAt)
	}

	var wd weightsData
	found, err = readJSON(filepath.Join(s.dir, WeightsFile), &wd)
	if err != nil {
		return Snapshot{}, err
	}
	if found {
		if wd.Version != currentVersion {
			return Snapshot{}, fmt.Errorf("%w: %s version %d", ErrCorrupt, WeightsFile, wd.Version)
		}
		if wd.Weights != nil {
			snap.Weights = wd.Weights
		}
	}
	return snap, nil
}

// Save writes both files atomically.
func (s *JSONStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := snap.SavedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	stamp := ts.Format(time.RFC3339Nano)

	learned := snap.Learned
	if learned == nil {
		learned = []knowledge.Entry{}
	}
	if err := writeJSON(filepath.Join(s.dir, LearnedFile), learnedData{
		Version:   currentVersion,
		ID:        snap.ID,
		UpdatedAt: stamp,
		Concepts:  learned,
	}); err != nil {
		return err
	}

	w := snap.Weights
	if w == nil {
		w = map[string]float64{}
	}
	return writeJSON(filepath.Join(s.dir, WeightsFile), weightsData{
		Version:   currentVersion,
		ID:        snap.ID,
		UpdatedAt: stamp,
		Weights:   w,
	})
}

// Close is a no-op for the file store.
func (s *JSONStore) Close() error {
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
