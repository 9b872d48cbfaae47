// Package progress combines the progress of ordered sub-operations into a
// single 0..100 value for display.
package progress

// Incomplete is the highest value reported while any phase is still open.
const Incomplete = 99.99

// Aggregate combines phase progress. weights holds one weight per phase in
// order, completed is the number of phases that signaled completion, and
// fraction (0..100) is the progress of the active phase at index completed.
//
// The result is 100*sum(weights[:completed]) + weights[completed]*fraction,
// on the same 0..100 scale as fraction. Weights need not sum to 1. The value
// stays below 100 until every phase has completed; a fraction of 100 does
// not close a phase.
func Aggregate(weights []float64, completed int, fraction float64) float64 {
	if completed < 0 {
		completed = 0
	}
	if completed >= len(weights) {
		return clamp(100*sum(weights), 0, 100)
	}
	v := 100*sum(weights[:completed]) + weights[completed]*clamp(fraction, 0, 100)
	return clamp(v, 0, Incomplete)
}

// Nested is the queue instantiation of Aggregate: n items of weight 1/n,
// completed of them done, the active one at fraction.
func Nested(completed, n int, fraction float64) float64 {
	if n <= 0 {
		return 0
	}
	if completed >= n {
		return 100
	}
	v := 100*float64(completed)/float64(n) + clamp(fraction, 0, 100)/float64(n)
	return clamp(v, 0, Incomplete)
}

// Split is the two-phase "download then transcode" pattern with equal weights.
// transcoding reports whether the first phase has completed.
func Split(transcoding bool, fraction float64) float64 {
	if transcoding {
		return Aggregate(halves, 1, fraction)
	}
	return Aggregate(halves, 0, fraction)
}

var halves = []float64{0.5, 0.5}

// Tracker follows a sequence of weighted phases. Phases may be appended
// while the sequence runs. A Tracker is owned by the code executing the
// active phase and is not safe for concurrent use.
type Tracker struct {
	weights   []float64
	completed int
	fraction  float64
}

// NewTracker creates a tracker with the given initial phase weights.
func NewTracker(weights ...float64) *Tracker {
	return &Tracker{weights: append([]float64(nil), weights...)}
}

// Add appends phases to the end of the sequence.
func (t *Tracker) Add(weights ...float64) {
	t.weights = append(t.weights, weights...)
}

// Set records the active phase's fraction (0..100).
func (t *Tracker) Set(fraction float64) float64 {
	t.fraction = fraction
	return t.Value()
}

// Complete closes the active phase and moves to the next one.
func (t *Tracker) Complete() float64 {
	if t.completed < len(t.weights) {
		t.completed++
	}
	t.fraction = 0
	return t.Value()
}

// Value returns the current aggregate.
func (t *Tracker) Value() float64 {
	return Aggregate(t.weights, t.completed, t.fraction)
}

// Done reports whether every phase has completed.
func (t *Tracker) Done() bool {
	return t.completed >= len(t.weights)
}

func sum(ws []float64) float64 {
	var s float64
	for _, w := range ws {
		s += w
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
