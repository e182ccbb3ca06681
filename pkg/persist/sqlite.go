package persist

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/knowledge"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

const schema = `
CREATE TABLE IF NOT EXISTS learned_concepts (
	label     TEXT PRIMARY KEY,
	category  TEXT NOT NULL,
	vector    BLOB NOT NULL,
	hits      INTEGER NOT NULL DEFAULT 0,
	seq       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS category_weights (
	category  TEXT PRIMARY KEY,
	weight    REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	snap_id   TEXT NOT NULL,
	saved_at  TEXT NOT NULL
);
`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every table into a snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Weights: map[string]float64{}}

	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT snap_id, saved_at FROM snapshot_meta WHERE id = 1`).Scan(&snap.ID, &savedAt)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return Snapshot{}, fmt.Errorf("query meta: %w", err)
	default:
		snap.SavedAt = parseTime(savedAt)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, weight FROM category_weights`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query weights: %w", err)
	}
	for rows.Next() {
		var cat string
		var w float64
		if err := rows.Scan(&cat, &w); err != nil {
			rows.Close()
			return Snapshot{}, fmt.Errorf("scan weight: %w", err)
		}
		snap.Weights[cat] = w
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate weights: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT label, category, vector, hits, seq FROM learned_concepts ORDER BY label`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query concepts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label, cat string
			blob       []byte
			e          knowledge.Entry
		)
		if err := rows.Scan(&label, &cat, &blob, &e.Hits, &e.Seq); err != nil {
			return Snapshot{}, fmt.Errorf("scan concept: %w", err)
		}
		c, err := action.ParseCategory(cat)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: concept %q: %v", ErrCorrupt, label, err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return Snapshot{}, fmt.Errorf("concept %q: %w", label, err)
		}
		e.Label, e.Category, e.Vector = label, c, v
		snap.Learned = append(snap.Learned, e)
	}
	return snap, rows.Err()
}

// Save replaces every table in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM learned_concepts`); err != nil {
		return fmt.Errorf("clear concepts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM category_weights`); err != nil {
		return fmt.Errorf("clear weights: %w", err)
	}

	for _, e := range snap.Learned {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO learned_concepts (label, category, vector, hits, seq) VALUES (?, ?, ?, ?, ?)`,
			e.Label, e.Category.String(), encodeVector(e.Vector), e.Hits, e.Seq,
		)
		if err != nil {
			return fmt.Errorf("insert concept %q: %w", e.Label, err)
		}
	}
	for cat, w := range snap.Weights {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO category_weights (category, weight) VALUES (?, ?)`, cat, w,
		); err != nil {
			return fmt.Errorf("insert weight %q: %w", cat, err)
		}
	}

	ts := snap.SavedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, snap_id, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET snap_id = excluded.snap_id, saved_at = excluded.saved_at`,
		snap.ID, ts.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("update meta: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v sensor.Vector) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) (sensor.Vector, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", ErrCorrupt, len(b))
	}
	v := make(sensor.Vector, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
