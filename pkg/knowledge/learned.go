package knowledge

import (
	"math"
	"sort"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Strengths closer than this count as equal when picking an eviction victim.
const normEpsilon = 1e-9

// Entry is a learned concept with its bookkeeping. The vector norm is its
// strength: reinforcement pulls it toward unit length, failures shrink it.
type Entry struct {
	Label    string          `json:"label"`
	Category action.Category `json:"category"`
	Vector   sensor.Vector   `json:"vector"`
	Hits     int             `json:"hits"`
	Seq      uint64          `json:"seq"`
}

// LearnedStore is a bounded label → vector store. Not safe for concurrent
// use; the engine owns it.
type LearnedStore struct {
	cfg     Config
	entries map[string]*Entry
	labels  []string // sorted, for deterministic iteration
	seq     uint64
}

// NewLearnedStore creates an empty store.
func NewLearnedStore(cfg Config) *LearnedStore {
	return &LearnedStore{cfg: cfg, entries: make(map[string]*Entry)}
}

// Len returns the number of learned concepts.
func (s *LearnedStore) Len() int {
	return len(s.entries)
}

// Get returns the concept stored under label.
func (s *LearnedStore) Get(label string) (Entry, bool) {
	e, ok := s.entries[label]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Vector = e.Vector.Clone()
	return out, true
}

// Upsert reinforces label toward v by exponential moving average, creating
// it when absent. Returns the label evicted to respect the cap, if any.
func (s *LearnedStore) Upsert(label string, cat action.Category, v sensor.Vector) (evicted string) {
	s.seq++
	if e, ok := s.entries[label]; ok {
		a := s.cfg.LearningRate
		for i := range e.Vector {
			if i < len(v) {
				e.Vector[i] = (1-a)*e.Vector[i] + a*v[i]
			}
		}
		e.Category = cat
		e.Hits++
		e.Seq = s.seq
		return ""
	}

	s.insert(&Entry{Label: label, Category: cat, Vector: v.Normalized(), Hits: 1, Seq: s.seq})
	if len(s.entries) > s.cfg.MaxLearned {
		evicted = s.weakest(label)
		s.remove(evicted)
	}
	return evicted
}

// Decay shrinks label's vector after a failure and deletes it once its
// norm drops below the floor. It reports whether the label existed and
// whether it was removed.
func (s *LearnedStore) Decay(label string) (found, removed bool) {
	e, ok := s.entries[label]
	if !ok {
		return false, false
	}
	e.Vector = e.Vector.Scale(s.cfg.DecayFactor)
	if e.Vector.Norm() < s.cfg.DeleteBelow {
		s.remove(label)
		return true, true
	}
	return true, false
}

// Concepts returns the learned concepts in label order.
func (s *LearnedStore) Concepts() []Concept {
	out := make([]Concept, 0, len(s.labels))
	for _, l := range s.labels {
		e := s.entries[l]
		out = append(out, Concept{Label: e.Label, Category: e.Category, Vector: e.Vector, Origin: Learned})
	}
	return out
}

// Entries returns deep copies of every entry in label order.
func (s *LearnedStore) Entries() []Entry {
	out := make([]Entry, 0, len(s.labels))
	for _, l := range s.labels {
		e := *s.entries[l]
		e.Vector = e.Vector.Clone()
		out = append(out, e)
	}
	return out
}

// Restore replaces the store contents. Entries beyond the cap are dropped
// weakest first; entries with the wrong dimension are skipped.
func (s *LearnedStore) Restore(entries []Entry) (skipped int) {
	s.Reset()
	for _, e := range entries {
		if len(e.Vector) != sensor.Dim || e.Label == "" || !e.Category.Valid() {
			skipped++
			continue
		}
		e := e
		e.Vector = e.Vector.Clone()
		s.insert(&e)
		if e.Seq > s.seq {
			s.seq = e.Seq
		}
	}
	for len(s.entries) > s.cfg.MaxLearned {
		s.remove(s.weakest(""))
		skipped++
	}
	return skipped
}

// Reset removes every learned concept.
func (s *LearnedStore) Reset() {
	s.entries = make(map[string]*Entry)
	s.labels = nil
	s.seq = 0
}

func (s *LearnedStore) insert(e *Entry) {
	if _, ok := s.entries[e.Label]; !ok {
		i := sort.SearchStrings(s.labels, e.Label)
		s.labels = append(s.labels, "")
		copy(s.labels[i+1:], s.labels[i:])
		s.labels[i] = e.Label
	}
	s.entries[e.Label] = e
}

func (s *LearnedStore) remove(label string) {
	if _, ok := s.entries[label]; !ok {
		return
	}
	delete(s.entries, label)
	i := sort.SearchStrings(s.labels, label)
	if i < len(s.labels) && s.labels[i] == label {
		s.labels = append(s.labels[:i], s.labels[i+1:]...)
	}
}

// weakest returns the entry with the lowest norm, oldest first on ties,
// ignoring keep.
func (s *LearnedStore) weakest(keep string) string {
	var (
		label string
		norm  float64
		seq   uint64
	)
	for _, l := range s.labels {
		if l == keep {
			continue
		}
		e := s.entries[l]
		n := e.Vector.Norm()
		if label == "" || n < norm-normEpsilon || (math.Abs(n-norm) <= normEpsilon && e.Seq < seq) {
			label, norm, seq = l, n, e.Seq
		}
	}
	return label
}
