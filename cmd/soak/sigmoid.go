package main

import (
	"math"
)

// customSigmoid re-implements the logistic function through the public
// Activation interface, the way a user of the runtime would add their own
// nonlinearity. The leak check runs it alongside the builtin to prove the
// extension path itself does not leak.
type customSigmoid struct{}

func (customSigmoid) Name() string { return "custom sigmoid" }

// Forward returns sigmoid(x) as the output and retains the same values as
// state for the backward pass.
func (customSigmoid) Forward(x []float32) ([]float32, []float32) {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = 1.0 / (1.0 + float32(math.Exp(float64(-v))))
	}
	return out, out
}

// Backward folds the upstream gradients through s * (1 - s).
func (customSigmoid) Backward(state, grad []float32) []float32 {
	dx := make([]float32, len(grad))
	for i, g := range grad {
		s := state[i]
		dx[i] = g * s * (1.0 - s)
	}
	return dx
}
