package leak

import (
	"gonum.org/v1/gonum/stat"
)

// Trace is an append-only series of memory samples in bytes, one per
// training iteration.
type Trace struct {
	samples []float64
}

// NewTrace pre-allocates room for the expected number of samples so the
// trace itself does not distort the measurement by growing mid-run.
func NewTrace(capacity int) *Trace {
	return &Trace{samples: make([]float64, 0, capacity)}
}

// Append records one sample.
func (t *Trace) Append(bytes uint64) {
	t.samples = append(t.samples, float64(bytes))
}

// Len returns the number of samples recorded.
func (t *Trace) Len() int { return len(t.samples) }

// First returns the first sample, or 0 for an empty trace.
func (t *Trace) First() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[0]
}

// Final returns the last sample, or 0 for an empty trace.
func (t *Trace) Final() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	return t.samples[len(t.samples)-1]
}

// Deltas returns the sample-to-sample differences.
func (t *Trace) Deltas() []float64 {
	if len(t.samples) < 2 {
		return nil
	}
	deltas := make([]float64, len(t.samples)-1)
	for i := 1; i < len(t.samples); i++ {
		deltas[i-1] = t.samples[i] - t.samples[i-1]
	}
	return deltas
}

// NonzeroDeltas returns only the iterations where memory actually moved.
func (t *Trace) NonzeroDeltas() []float64 {
	var changes []float64
	for _, d := range t.Deltas() {
		if d != 0 {
			changes = append(changes, d)
		}
	}
	return changes
}

// IncreaseFraction returns the fraction of iterations on which memory grew.
// The denominator is the iteration count, not the delta count.
func (t *Trace) IncreaseFraction() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	increases := 0
	for _, d := range t.Deltas() {
		if d > 0 {
			increases++
		}
	}
	return float64(increases) / float64(len(t.samples))
}

// WindowGrowth compares the mean of the final `window` samples against the
// mean of the `window` samples starting at the midpoint. Positive values
// mean memory kept growing after the warm-up noise settled.
//
// Traces shorter than two windows fall back to comparing halves.
func (t *Trace) WindowGrowth(window int) float64 {
	n := len(t.samples)
	if n < 2 {
		return 0
	}
	if window <= 0 || n < 2*window {
		window = n / 2
	}
	if window == 0 {
		return 0
	}

	mid := n / 2
	middle := t.samples[mid : mid+window]
	final := t.samples[n-window:]

	return stat.Mean(final, nil) - stat.Mean(middle, nil)
}
