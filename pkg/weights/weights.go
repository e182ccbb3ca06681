// Package weights keeps the per-category behavioral weights that scale
// concept similarity. Success multiplies a weight up, failure down, and the
// result is always clamped to [Min, Max].
package weights

import (
	"errors"
	"fmt"
	"sort"

	"github.com/teslashibe/go-swarm/pkg/action"
)

// Config holds the update factors and bounds.
type Config struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
	Reward  float64 `yaml:"reward"`  // multiplier on success
	Penalty float64 `yaml:"penalty"` // multiplier on failure
}

// DefaultConfig returns the standard bounds [0.5, 2.0] with ±5% updates.
func DefaultConfig() Config {
	return Config{
		Min:     0.5,
		Max:     2.0,
		Default: 1.0,
		Reward:  1.05,
		Penalty: 0.95,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("weights: invalid config")

// Validate checks bounds and factors.
func (c Config) Validate() error {
	switch {
	case c.Min <= 0 || c.Max < c.Min:
		return fmt.Errorf("%w: need 0 < min <= max", ErrInvalidConfig)
	case c.Default < c.Min || c.Default > c.Max:
		return fmt.Errorf("%w: default outside [min, max]", ErrInvalidConfig)
	case c.Reward < 1:
		return fmt.Errorf("%w: reward must be >= 1", ErrInvalidConfig)
	case c.Penalty <= 0 || c.Penalty > 1:
		return fmt.Errorf("%w: penalty must be in (0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Table maps categories to weights. Not safe for concurrent use; the engine
// owns it.
type Table struct {
	cfg Config
	w   map[action.Category]float64
}

// New creates a table where every category starts at the default weight.
func New(cfg Config) *Table {
	return &Table{cfg: cfg, w: make(map[action.Category]float64)}
}

// Get returns the weight for c.
func (t *Table) Get(c action.Category) float64 {
	if w, ok := t.w[c]; ok {
		return w
	}
	return t.cfg.Default
}

// Update applies one feedback outcome to c and returns the new weight.
func (t *Table) Update(c action.Category, success bool) float64 {
	w := t.Get(c)
	if success {
		w *= t.cfg.Reward
	} else {
		w *= t.cfg.Penalty
	}
	w = t.clamp(w)
	t.w[c] = w
	return w
}

// Set stores a weight, clamped. Used when restoring persisted state.
func (t *Table) Set(c action.Category, w float64) {
	t.w[c] = t.clamp(w)
}

// Snapshot returns a copy of every stored weight keyed by category name.
func (t *Table) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.w))
	for c, w := range t.w {
		out[c.String()] = w
	}
	return out
}

// Restore loads weights by category name. Unknown names are returned so the
// caller can log them.
func (t *Table) Restore(m map[string]float64) (skipped []string) {
	for name, w := range m {
		c, err := action.ParseCategory(name)
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		t.Set(c, w)
	}
	sort.Strings(skipped)
	return skipped
}

// Reset drops every learned weight.
func (t *Table) Reset() {
	t.w = make(map[action.Category]float64)
}

func (t *Table) clamp(w float64) float64 {
	if w != w { // NaN
		return t.cfg.Default
	}
	if w < t.cfg.Min {
		return t.cfg.Min
	}
	if w > t.cfg.Max {
		return t.cfg.Max
	}
	return w
}
