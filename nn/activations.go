package nn

import (
	"math"
)

// Activation is an element-wise differentiable nonlinearity.
//
// Forward computes the activated values and returns them together with any
// state the backward pass needs. Builtins retain their own output as state,
// which is enough to evaluate their derivatives. Backward folds the upstream
// gradients through the nonlinearity using that retained state.
//
// Implementations must not alias the input slice in their output and must
// not mutate state inside Backward, so that a forward/backward pair over the
// same minibatch stays consistent.
type Activation interface {
	Name() string
	Forward(x []float32) (out, state []float32)
	Backward(state, grad []float32) []float32
}

// Sigmoid is the logistic function 1 / (1 + exp(-v)).
type Sigmoid struct{}

func (Sigmoid) Name() string { return "sigmoid" }

func (Sigmoid) Forward(x []float32) ([]float32, []float32) {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = 1.0 / (1.0 + float32(math.Exp(float64(-v))))
	}
	return out, out
}

func (Sigmoid) Backward(state, grad []float32) []float32 {
	// d/dv sigmoid(v) = s * (1 - s), with s the retained output
	dx := make([]float32, len(grad))
	for i, g := range grad {
		s := state[i]
		dx[i] = g * s * (1.0 - s)
	}
	return dx
}

// Tanh is the hyperbolic tangent.
type Tanh struct{}

func (Tanh) Name() string { return "tanh" }

func (Tanh) Forward(x []float32) ([]float32, []float32) {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(math.Tanh(float64(v)))
	}
	return out, out
}

func (Tanh) Backward(state, grad []float32) []float32 {
	// d/dv tanh(v) = 1 - tanh^2(v)
	dx := make([]float32, len(grad))
	for i, g := range grad {
		t := state[i]
		dx[i] = g * (1.0 - t*t)
	}
	return dx
}

// ReLU is max(0, v).
type ReLU struct{}

func (ReLU) Name() string { return "relu" }

func (ReLU) Forward(x []float32) ([]float32, []float32) {
	out := make([]float32, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
		}
	}
	return out, out
}

func (ReLU) Backward(state, grad []float32) []float32 {
	// Zero pre-activation propagates zero gradient.
	dx := make([]float32, len(grad))
	for i, g := range grad {
		if state[i] > 0 {
			dx[i] = g
		}
	}
	return dx
}

// Identity passes values through unchanged. The output layer uses it so the
// loss can apply softmax itself.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Forward(x []float32) ([]float32, []float32) {
	out := make([]float32, len(x))
	copy(out, x)
	return out, out
}

func (Identity) Backward(state, grad []float32) []float32 {
	dx := make([]float32, len(grad))
	copy(dx, grad)
	return dx
}
