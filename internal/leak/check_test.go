package leak

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.1, cfg.FractionTolerance)
	assert.Equal(t, float64(150*1024), cfg.GrowthToleranceBytes)
	assert.Equal(t, 1000, cfg.Window)
}

func TestCheckPassesFlatTrace(t *testing.T) {
	tr := NewTrace(16)
	for i := 0; i < 16; i++ {
		tr.Append(1000 * 1024)
	}

	cfg := Config{FractionTolerance: 0.1, GrowthToleranceBytes: 100 * 1024, Window: 4}
	assert.NoError(t, cfg.Check("sigmoid", tr))
}

func TestCheckRequiresBothThresholds(t *testing.T) {
	cfg := Config{FractionTolerance: 0.1, GrowthToleranceBytes: 100 * 1024, Window: 4}

	// Nearly every iteration grows, but only by a byte: fraction exceeds,
	// growth does not.
	creep := NewTrace(16)
	for i := 0; i < 16; i++ {
		creep.Append(uint64(1000*1024 + i))
	}
	assert.NoError(t, cfg.Check("sigmoid", creep))

	// One giant jump in the final window: growth exceeds, fraction does not.
	jump := NewTrace(16)
	for i := 0; i < 16; i++ {
		if i >= 12 {
			jump.Append(1_000_000_000)
			continue
		}
		jump.Append(1000 * 1024)
	}
	assert.NoError(t, cfg.Check("sigmoid", jump))
}

func TestCheckFlagsSteadyGrowth(t *testing.T) {
	cfg := Config{FractionTolerance: 0.1, GrowthToleranceBytes: 100 * 1024, Window: 4}

	// 200 KB of growth every iteration. Middle window [8, 12) and final
	// window [12, 16) sit 800 KB apart.
	tr := NewTrace(16)
	for i := 0; i < 16; i++ {
		tr.Append(uint64((1000 + 200*i) * 1024))
	}

	err := cfg.Check("sigmoid", tr)
	require.Error(t, err)

	var leakErr *LeakError
	require.True(t, errors.As(err, &leakErr))
	assert.Equal(t, "sigmoid", leakErr.Activation)
	assert.InDelta(t, 800*1024, leakErr.GrowthBytes, 1e-6)
	assert.InDelta(t, 15.0/16.0, leakErr.IncreaseFraction, 1e-12)
	assert.Len(t, leakErr.Deltas, 15)

	msg := err.Error()
	assert.Contains(t, msg, "potential memory leak of ~800 KB")
	assert.Contains(t, msg, "93% of iterations increased memory usage")
	assert.Contains(t, msg, "sigmoid")
	assert.Contains(t, msg, "204800") // the per-iteration delta in bytes
}

func TestFormatDeltasElidesLongRuns(t *testing.T) {
	deltas := make([]float64, 40)
	for i := range deltas {
		deltas[i] = float64(i + 1)
	}

	got := formatDeltas(deltas)
	assert.Contains(t, got, "... (8 more)")
	assert.Contains(t, got, "[1 2")
	assert.Contains(t, got, "39 40]")
	// The first half ends at 16 and the elision resumes at 25
	assert.Contains(t, got, "16 ...")
	assert.Contains(t, got, "more) 25")
	assert.NotContains(t, got, " 20 ")
}

func TestFormatDeltasShortRuns(t *testing.T) {
	assert.Equal(t, "[]", formatDeltas(nil))
	assert.Equal(t, "[150 -20 3]", formatDeltas([]float64{150, -20, 3}))

	full := make([]float64, maxReportedDeltas)
	for i := range full {
		full[i] = 1
	}
	assert.NotContains(t, formatDeltas(full), "more")
}

func TestLeakErrorFormatting(t *testing.T) {
	err := &LeakError{
		Activation:       "custom sigmoid",
		GrowthBytes:      512 * 1024,
		IncreaseFraction: 0.42,
		Deltas:           []float64{4096, 8192},
	}

	want := fmt.Sprintf("potential memory leak of ~%d KB (%d%% of iterations increased memory usage) detected with %s:\n%s",
		512, 42, "custom sigmoid", "[4096 8192]")
	assert.Equal(t, want, err.Error())
}
