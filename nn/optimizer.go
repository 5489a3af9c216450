package nn

import (
	"fmt"
)

// Optimizer applies accumulated gradients to network parameters.
type Optimizer interface {
	// Step applies gradients to network weights
	Step(network *Network, learningRate float32)

	// Reset clears optimizer state (momentum, etc.)
	Reset()

	// Name returns the optimizer name
	Name() string
}

// ============================================================================
// SGD (Stochastic Gradient Descent with optional momentum)
// ============================================================================

type SGD struct {
	momentum   float32
	velocities map[string][]float32 // momentum buffers, keyed per layer
}

// NewSGD returns plain stochastic gradient descent, the learner the training
// and leak-check runs use.
func NewSGD() *SGD {
	return &SGD{
		momentum:   0.0,
		velocities: make(map[string][]float32),
	}
}

// NewSGDWithMomentum returns SGD with classical momentum.
func NewSGDWithMomentum(momentum float32) *SGD {
	return &SGD{
		momentum:   momentum,
		velocities: make(map[string][]float32),
	}
}

func (opt *SGD) Step(network *Network, learningRate float32) {
	if opt.momentum == 0.0 {
		opt.stepSimple(network, learningRate)
		return
	}
	opt.stepWithMomentum(network, learningRate)
}

func (opt *SGD) stepSimple(network *Network, learningRate float32) {
	// w = w - lr * grad
	for _, layer := range network.Layers {
		for j := range layer.Weights {
			layer.Weights[j] -= learningRate * layer.GradWeights[j]
		}
		for j := range layer.Bias {
			layer.Bias[j] -= learningRate * layer.GradBias[j]
		}
	}
}

func (opt *SGD) stepWithMomentum(network *Network, learningRate float32) {
	for i, layer := range network.Layers {
		wKey := fmt.Sprintf("weights_%d", i)
		bKey := fmt.Sprintf("bias_%d", i)

		if opt.velocities[wKey] == nil {
			opt.velocities[wKey] = make([]float32, len(layer.Weights))
		}
		if opt.velocities[bKey] == nil {
			opt.velocities[bKey] = make([]float32, len(layer.Bias))
		}

		// v = momentum * v + grad; w = w - lr * v
		vw := opt.velocities[wKey]
		for j := range layer.Weights {
			vw[j] = opt.momentum*vw[j] + layer.GradWeights[j]
			layer.Weights[j] -= learningRate * vw[j]
		}
		vb := opt.velocities[bKey]
		for j := range layer.Bias {
			vb[j] = opt.momentum*vb[j] + layer.GradBias[j]
			layer.Bias[j] -= learningRate * vb[j]
		}
	}
}

func (opt *SGD) Reset() {
	opt.velocities = make(map[string][]float32)
}

func (opt *SGD) Name() string {
	if opt.momentum != 0.0 {
		return "sgd_momentum"
	}
	return "sgd"
}
