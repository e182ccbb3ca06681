package maneuver

import "github.com/teslashibe/go-swarm/pkg/action"

// History is a fixed-capacity ring of recent turn directions.
type History struct {
	buf  []action.Direction
	next int
	n    int
}

// NewHistory creates a history holding up to size directions.
func NewHistory(size int) *History {
	return &History{buf: make([]action.Direction, size)}
}

// Push records a turn. None is ignored.
func (h *History) Push(d action.Direction) {
	if d == action.None || len(h.buf) == 0 {
		return
	}
	h.buf[h.next] = d
	h.next = (h.next + 1) % len(h.buf)
	if h.n < len(h.buf) {
		h.n++
	}
}

// Len returns the number of stored directions.
func (h *History) Len() int {
	return h.n
}

// Last returns up to n most recent directions, oldest first.
func (h *History) Last(n int) []action.Direction {
	if n > h.n {
		n = h.n
	}
	out := make([]action.Direction, n)
	start := h.next - n
	for i := 0; i < n; i++ {
		idx := (start + i) % len(h.buf)
		if idx < 0 {
			idx += len(h.buf)
		}
		out[i] = h.buf[idx]
	}
	return out
}

// Clear empties the history.
func (h *History) Clear() {
	h.next, h.n = 0, 0
}

// Oscillating reports whether the last window directions strictly
// alternate or change more than maxChanges times.
func (h *History) Oscillating(window, maxChanges int) bool {
	if h.n < window {
		return false
	}
	recent := h.Last(window)
	changes := 0
	for i := 1; i < len(recent); i++ {
		if recent[i] != recent[i-1] {
			changes++
		}
	}
	return changes == window-1 || changes > maxChanges
}

// Streak returns the most recent direction and how many times in a row it
// was chosen.
func (h *History) Streak() (action.Direction, int) {
	recent := h.Last(h.n)
	if len(recent) == 0 {
		return action.None, 0
	}
	last := recent[len(recent)-1]
	n := 0
	for i := len(recent) - 1; i >= 0 && recent[i] == last; i-- {
		n++
	}
	return last, n
}
