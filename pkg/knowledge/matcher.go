package knowledge

import (
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// Weighter returns the behavioral weight of a category.
type Weighter interface {
	Get(c action.Category) float64
}

// Match is the matcher output. When Confident is false the category is
// Unknown and no concept was selected.
type Match struct {
	Concept    string
	Category   action.Category
	Origin     Origin
	Similarity float64
	Score      float64
	Confident  bool
}

// Matcher selects the best concept for a vector across both stores.
type Matcher struct {
	cfg     Config
	static  []Concept
	learned *LearnedStore
}

// NewMatcher creates a matcher over a static concept set and a learned store.
func NewMatcher(cfg Config, static []Concept, learned *LearnedStore) *Matcher {
	return &Matcher{cfg: cfg, static: static, learned: learned}
}

// StaticCount returns the number of static concepts.
func (m *Matcher) StaticCount() int {
	return len(m.static)
}

// Match scores v against every concept. A learned concept wins only when
// its raw similarity clears LearnedThreshold and its weighted score beats
// the best static one. Otherwise the best static concept is used when its
// weighted score clears MatchThreshold. Anything else falls back to
// Unknown.
func (m *Matcher) Match(v sensor.Vector, w Weighter) Match {
	bestStatic := best(m.static, v, w)

	var bestLearned Match
	if m.learned != nil {
		bestLearned = best(m.learned.Concepts(), v, w)
	}

	if bestLearned.Concept != "" &&
		bestLearned.Similarity >= m.cfg.LearnedThreshold &&
		(bestStatic.Concept == "" || bestLearned.Score > bestStatic.Score) {
		bestLearned.Confident = true
		return bestLearned
	}
	if bestStatic.Concept != "" && bestStatic.Score >= m.cfg.MatchThreshold {
		bestStatic.Confident = true
		return bestStatic
	}

	return Match{Category: action.Unknown, Similarity: max(bestStatic.Similarity, bestLearned.Similarity)}
}

func best(concepts []Concept, v sensor.Vector, w Weighter) Match {
	var m Match
	for _, c := range concepts {
		sim := sensor.Cosine(v, c.Vector)
		score := sim * w.Get(c.Category)
		if m.Concept == "" || score > m.Score {
			m = Match{
				Concept:    c.Label,
				Category:   c.Category,
				Origin:     c.Origin,
				Similarity: sim,
				Score:      score,
			}
		}
	}
	return m
}
