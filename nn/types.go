package nn

import (
	"math/rand"

	"github.com/openfluke/soak/gpu"
)

// Layer is a dense (fully-connected) layer with an element-wise activation.
//
// Weights are input-major: Weights[i*OutputDim+o] connects input i to output o,
// matching the (inputDim, outputDim) parameter shape used throughout.
type Layer struct {
	InputDim  int
	OutputDim int

	Weights []float32 // [InputDim * OutputDim]
	Bias    []float32 // [OutputDim]

	Act Activation

	// Gradients accumulated by the most recent backward pass.
	GradWeights []float32
	GradBias    []float32

	// Forward state cached for the backward pass of the same minibatch.
	input    []float32 // [batch * InputDim]
	preAct   []float32 // [batch * OutputDim], linear output before activation
	actState []float32 // state retained by Act.Forward
	output   []float32 // [batch * OutputDim]
}

// Network is a stack of dense layers ending in a linear output layer.
type Network struct {
	InputDim  int
	OutputDim int
	Layers    []*Layer

	// GPU execution state, populated by EnableGPU.
	dev     *gpu.Device
	kernels []*gpu.DenseKernel
}

// Summary is a compact description of a network, suitable for JSON output.
type Summary struct {
	InputDim     int         `json:"input_dim"`
	OutputDim    int         `json:"output_dim"`
	HiddenLayers int         `json:"hidden_layers"`
	HiddenDim    int         `json:"hidden_dim"`
	Activation   string      `json:"activation"`
	Parameters   int         `json:"parameters"`
	GPU          bool        `json:"gpu"`
	Layers       []LayerInfo `json:"layers"`
}

// LayerInfo describes one layer of a summarized network.
type LayerInfo struct {
	Type       string `json:"type"`
	InputDim   int    `json:"input_dim"`
	OutputDim  int    `json:"output_dim"`
	Activation string `json:"activation"`
	Parameters int    `json:"parameters"`
}

// NewClassifier builds a fully-connected classifier: numHiddenLayers dense
// layers of hiddenDim units with the given activation, followed by a linear
// layer projecting to numClasses. Softmax is applied by the loss, not here.
func NewClassifier(inputDim, numClasses, hiddenDim, numHiddenLayers int, act Activation, rng *rand.Rand) *Network {
	n := &Network{
		InputDim:  inputDim,
		OutputDim: numClasses,
	}

	prev := inputDim
	for i := 0; i < numHiddenLayers; i++ {
		n.Layers = append(n.Layers, initDenseLayer(prev, hiddenDim, act, rng))
		prev = hiddenDim
	}
	n.Layers = append(n.Layers, initDenseLayer(prev, numClasses, Identity{}, rng))

	return n
}

// ParameterCount returns the total number of trainable scalars.
func (n *Network) ParameterCount() int {
	total := 0
	for _, l := range n.Layers {
		total += len(l.Weights) + len(l.Bias)
	}
	return total
}

// Summarize reports the network shape and size.
func (n *Network) Summarize() Summary {
	s := Summary{
		InputDim:   n.InputDim,
		OutputDim:  n.OutputDim,
		Parameters: n.ParameterCount(),
		GPU:        n.Accelerated(),
	}
	if len(n.Layers) > 1 {
		hidden := n.Layers[0]
		s.HiddenLayers = len(n.Layers) - 1
		s.HiddenDim = hidden.OutputDim
		s.Activation = hidden.Act.Name()
	} else if len(n.Layers) == 1 {
		s.Activation = n.Layers[0].Act.Name()
	}
	for _, l := range n.Layers {
		s.Layers = append(s.Layers, LayerInfo{
			Type:       "dense",
			InputDim:   l.InputDim,
			OutputDim:  l.OutputDim,
			Activation: l.Act.Name(),
			Parameters: len(l.Weights) + len(l.Bias),
		})
	}
	return s
}

// Accelerated reports whether the forward matmul runs on a GPU adapter.
func (n *Network) Accelerated() bool {
	return len(n.kernels) > 0
}
