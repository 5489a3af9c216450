package leak

import (
	"fmt"
	"strings"
)

// Default tolerances for the heuristic.
const (
	// Fraction of iterations on which memory may increase. Most of these
	// are expected to be the first few training runs.
	DefaultFractionTolerance = 0.1

	// Allowed mean growth in bytes between the middle and final windows.
	// Covers the normal fluctuations seen when training on the CPU.
	DefaultGrowthToleranceBytes = 150 * 1024

	// Window width in iterations for the mean comparison.
	DefaultWindow = 1000
)

// maxReportedDeltas caps how many non-zero deltas a LeakError renders.
const maxReportedDeltas = 32

// Config holds the heuristic thresholds.
type Config struct {
	FractionTolerance    float64
	GrowthToleranceBytes float64
	Window               int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		FractionTolerance:    DefaultFractionTolerance,
		GrowthToleranceBytes: DefaultGrowthToleranceBytes,
		Window:               DefaultWindow,
	}
}

// LeakError reports a failed leak check. It fires only when both the
// increase fraction and the window growth exceed their tolerances.
type LeakError struct {
	Activation       string
	GrowthBytes      float64
	IncreaseFraction float64
	Deltas           []float64 // non-zero deltas of the trace
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("potential memory leak of ~%d KB (%d%% of iterations increased memory usage) detected with %s:\n%s",
		int(e.GrowthBytes/1024), int(e.IncreaseFraction*100), e.Activation, formatDeltas(e.Deltas))
}

// Check applies the heuristic to a trace. A nil return means the trace
// passed; a *LeakError carries the evidence when it did not.
func (c Config) Check(name string, tr *Trace) error {
	fraction := tr.IncreaseFraction()
	growth := tr.WindowGrowth(c.Window)

	if fraction > c.FractionTolerance && growth > c.GrowthToleranceBytes {
		return &LeakError{
			Activation:       name,
			GrowthBytes:      growth,
			IncreaseFraction: fraction,
			Deltas:           tr.NonzeroDeltas(),
		}
	}
	return nil
}

// formatDeltas renders the non-zero deltas, eliding the middle of long runs.
func formatDeltas(deltas []float64) string {
	var b strings.Builder
	b.WriteString("[")
	if len(deltas) <= maxReportedDeltas {
		for i, d := range deltas {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%g", d)
		}
	} else {
		half := maxReportedDeltas / 2
		for i := 0; i < half; i++ {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%g", deltas[i])
		}
		fmt.Fprintf(&b, " ... (%d more)", len(deltas)-maxReportedDeltas)
		for _, d := range deltas[len(deltas)-half:] {
			fmt.Fprintf(&b, " %g", d)
		}
	}
	b.WriteString("]")
	return b.String()
}
