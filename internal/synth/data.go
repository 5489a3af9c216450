// Package synth produces the deterministic synthetic classification data the
// training and leak-check runs consume.
package synth

import (
	"math/rand"
)

// Batch is one minibatch of labeled samples in flat row-major form.
type Batch struct {
	Features []float32 // [Size * featureDim]
	Labels   []float32 // [Size * numClasses], one-hot
	Size     int
}

// Generate draws one minibatch from the given RNG. Class labels are uniform
// over [0, numClasses); features are (N(0,1) + 3) * (label + 1), which keeps
// the classes linearly separable by scale. Labels come out one-hot.
//
// Labels for the whole batch are drawn before any features, so a fixed seed
// yields an identical batch regardless of caller.
func Generate(rng *rand.Rand, size, featureDim, numClasses int) Batch {
	labels := make([]int, size)
	for s := range labels {
		labels[s] = rng.Intn(numClasses)
	}

	features := make([]float32, size*featureDim)
	for s := 0; s < size; s++ {
		scale := float32(labels[s] + 1)
		for f := 0; f < featureDim; f++ {
			features[s*featureDim+f] = (float32(rng.NormFloat64()) + 3.0) * scale
		}
	}

	oneHot := make([]float32, size*numClasses)
	for s, class := range labels {
		oneHot[s*numClasses+class] = 1.0
	}

	return Batch{
		Features: features,
		Labels:   oneHot,
		Size:     size,
	}
}
