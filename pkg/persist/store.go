// Package persist saves and restores what the engine learns: category
// weights and learned concepts. Two backends share one interface: a pair of
// JSON files and a SQLite database.
package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-swarm/pkg/knowledge"
)

// Snapshot is the durable learning state.
type Snapshot struct {
	ID      string             `json:"id"`
	SavedAt time.Time          `json:"saved_at"`
	Weights map[string]float64 `json:"weights"`
	Learned []knowledge.Entry  `json:"learned"`
}

// NewSnapshot stamps a snapshot with a fresh id and time.
func NewSnapshot(weights map[string]float64, learned []knowledge.Entry) Snapshot {
	return Snapshot{
		ID:      uuid.New().String(),
		SavedAt: time.Now().UTC(),
		Weights: weights,
		Learned: learned,
	}
}

// Empty reports whether the snapshot carries no learning.
func (s Snapshot) Empty() bool {
	return len(s.Weights) == 0 && len(s.Learned) == 0
}

// Store defines the interface for learning state storage.
type Store interface {
	// Load returns the last saved snapshot, or an empty one when nothing
	// has been saved yet.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Errors returned by stores.
var (
	ErrCorrupt        = errors.New("persist: corrupt state")
	ErrUnknownBackend = errors.New("persist: unknown backend")
)

// Open creates the store for backend rooted at dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(dataDir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dataDir, "swarm.db"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
