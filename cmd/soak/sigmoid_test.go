package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/openfluke/soak/internal/synth"
	"github.com/openfluke/soak/nn"
)

// TestCustomSigmoidMatchesBuiltin verifies the user-defined activation is a
// drop-in replacement for the builtin
func TestCustomSigmoidMatchesBuiltin(t *testing.T) {
	xs := []float32{-5, -1, -0.5, 0, 0.5, 1, 5}

	customOut, customState := customSigmoid{}.Forward(xs)
	builtinOut, builtinState := nn.Sigmoid{}.Forward(xs)

	for i := range xs {
		if math.Abs(float64(customOut[i]-builtinOut[i])) > 1e-7 {
			t.Errorf("forward[%d]: custom %f, builtin %f", i, customOut[i], builtinOut[i])
		}
	}

	grads := []float32{1, 1, 1, 1, 1, 1, 1}
	customDx := customSigmoid{}.Backward(customState, grads)
	builtinDx := nn.Sigmoid{}.Backward(builtinState, grads)

	for i := range grads {
		if math.Abs(float64(customDx[i]-builtinDx[i])) > 1e-7 {
			t.Errorf("backward[%d]: custom %f, builtin %f", i, customDx[i], builtinDx[i])
		}
	}
}

// TestCustomSigmoidTrainsIdentically verifies a network built on the custom
// activation follows the builtin one step for step
func TestCustomSigmoidTrainsIdentically(t *testing.T) {
	build := func(act nn.Activation) *nn.Trainer {
		rng := rand.New(rand.NewSource(11))
		net := nn.NewClassifier(2, 2, 4, 1, act, rng)
		return nn.NewTrainer(net, nn.NewSGD(), 0.5)
	}

	custom := build(customSigmoid{})
	builtin := build(nn.Sigmoid{})

	batch := synth.Generate(rand.New(rand.NewSource(5)), 8, 2, 2)
	for i := 0; i < 50; i++ {
		if err := custom.TrainMinibatch(batch.Features, batch.Labels, batch.Size); err != nil {
			t.Fatalf("custom minibatch %d: %v", i, err)
		}
		if err := builtin.TrainMinibatch(batch.Features, batch.Labels, batch.Size); err != nil {
			t.Fatalf("builtin minibatch %d: %v", i, err)
		}
	}

	if custom.PreviousMinibatchLoss() != builtin.PreviousMinibatchLoss() {
		t.Errorf("loss diverged: custom %f, builtin %f",
			custom.PreviousMinibatchLoss(), builtin.PreviousMinibatchLoss())
	}

	for li, cl := range custom.Net.Layers {
		bl := builtin.Net.Layers[li]
		for j := range cl.Weights {
			if math.Abs(float64(cl.Weights[j]-bl.Weights[j])) > 1e-6 {
				t.Fatalf("layer %d weight %d diverged: custom %f, builtin %f",
					li, j, cl.Weights[j], bl.Weights[j])
			}
		}
	}
}
