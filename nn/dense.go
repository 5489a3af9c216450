package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// initDenseLayer builds a dense layer with He-initialized weights and zero bias.
func initDenseLayer(inputDim, outputDim int, act Activation, rng *rand.Rand) *Layer {
	// He initialization for weights
	stddev := float32(math.Sqrt(2.0 / float64(inputDim)))

	weights := make([]float32, inputDim*outputDim)
	for i := range weights {
		weights[i] = float32(rng.NormFloat64()) * stddev
	}

	return &Layer{
		InputDim:    inputDim,
		OutputDim:   outputDim,
		Weights:     weights,
		Bias:        make([]float32, outputDim), // zero
		Act:         act,
		GradWeights: make([]float32, inputDim*outputDim),
		GradBias:    make([]float32, outputDim),
	}
}

// linearCPU computes input @ weights + bias for one layer.
// input: [batch * InputDim], result: [batch * OutputDim]
func (l *Layer) linearCPU(input []float32, batch int) []float32 {
	pre := make([]float32, batch*l.OutputDim)
	for b := 0; b < batch; b++ {
		for o := 0; o < l.OutputDim; o++ {
			sum := l.Bias[o]
			for i := 0; i < l.InputDim; i++ {
				sum += input[b*l.InputDim+i] * l.Weights[i*l.OutputDim+o]
			}
			pre[b*l.OutputDim+o] = sum
		}
	}
	return pre
}

// forward runs the layer on the host, caching state for the backward pass.
func (l *Layer) forward(input []float32, batch int) []float32 {
	pre := l.linearCPU(input, batch)
	out, state := l.Act.Forward(pre)

	l.input = input
	l.preAct = pre
	l.actState = state
	l.output = out
	return out
}

// backward consumes the upstream gradient, accumulates the weight and bias
// gradients of this layer, and returns the gradient w.r.t. the layer input.
func (l *Layer) backward(gradOutput []float32, batch int) []float32 {
	gradPre := l.Act.Backward(l.actState, gradOutput)

	gradInput := make([]float32, batch*l.InputDim)
	for b := 0; b < batch; b++ {
		for o := 0; o < l.OutputDim; o++ {
			g := gradPre[b*l.OutputDim+o]
			l.GradBias[o] += g

			for i := 0; i < l.InputDim; i++ {
				inputIdx := b*l.InputDim + i
				weightIdx := i*l.OutputDim + o

				l.GradWeights[weightIdx] += l.input[inputIdx] * g
				gradInput[inputIdx] += l.Weights[weightIdx] * g
			}
		}
	}
	return gradInput
}

// zeroGrads clears the gradient accumulators.
func (l *Layer) zeroGrads() {
	for i := range l.GradWeights {
		l.GradWeights[i] = 0
	}
	for i := range l.GradBias {
		l.GradBias[i] = 0
	}
}

// Forward runs the full network on one minibatch and returns the logits
// [batch * OutputDim]. Per-layer state is cached for Backward.
func (n *Network) Forward(features []float32, batch int) ([]float32, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("forward: batch size must be positive, got %d", batch)
	}
	if len(features) != batch*n.InputDim {
		return nil, fmt.Errorf("forward: feature length %d does not match batch %d x input dim %d",
			len(features), batch, n.InputDim)
	}

	cur := features
	for li, l := range n.Layers {
		if n.kernels != nil {
			pre, err := n.forwardLayerGPU(li, cur, batch)
			if err != nil {
				return nil, err
			}
			out, state := l.Act.Forward(pre)
			l.input, l.preAct, l.actState, l.output = cur, pre, state, out
			cur = out
			continue
		}
		cur = l.forward(cur, batch)
	}
	return cur, nil
}

// Backward computes gradients of the cross-entropy-with-softmax loss w.r.t.
// every weight and bias, given the one-hot labels of the minibatch Forward
// just ran on. Gradient accumulators are zeroed first.
func (n *Network) Backward(labels []float32, batch int) error {
	if len(n.Layers) == 0 {
		return fmt.Errorf("backward: empty network")
	}
	last := n.Layers[len(n.Layers)-1]
	if last.output == nil {
		return fmt.Errorf("backward: no cached forward pass")
	}
	if len(labels) != batch*n.OutputDim {
		return fmt.Errorf("backward: label length %d does not match batch %d x output dim %d",
			len(labels), batch, n.OutputDim)
	}

	for _, l := range n.Layers {
		l.zeroGrads()
	}

	// dLoss/dLogits for softmax + cross-entropy is (softmax(z) - y) / batch.
	grad := make([]float32, batch*n.OutputDim)
	probs := make([]float32, n.OutputDim)
	for b := 0; b < batch; b++ {
		row := last.output[b*n.OutputDim : (b+1)*n.OutputDim]
		softmaxRow(row, probs)
		for o := 0; o < n.OutputDim; o++ {
			grad[b*n.OutputDim+o] = (probs[o] - labels[b*n.OutputDim+o]) / float32(batch)
		}
	}

	for li := len(n.Layers) - 1; li >= 0; li-- {
		grad = n.Layers[li].backward(grad, batch)
	}
	return nil
}

// softmaxRow writes the softmax of logits into probs, subtracting the row max
// before exponentiation for numerical stability.
func softmaxRow(logits []float32, probs []float32) {
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}

	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64(v - maxV)))
		probs[i] = e
		sum += e
	}
	for i := range probs {
		probs[i] /= sum
	}
}
