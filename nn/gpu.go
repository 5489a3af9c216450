package nn

import (
	"fmt"

	"github.com/openfluke/soak/gpu"
)

// EnableGPU compiles a dense matmul kernel per layer on the given device and
// routes the linear part of Forward through them. Activations and the whole
// backward pass stay on the host, which keeps user-defined activations
// working unchanged when a GPU device is selected.
//
// maxBatch fixes the buffer sizes; Forward rejects larger minibatches.
func (n *Network) EnableGPU(dev *gpu.Device, maxBatch int) error {
	if dev == nil || !dev.Accelerated() {
		return fmt.Errorf("enable gpu: device is not accelerated")
	}
	if n.kernels != nil {
		return fmt.Errorf("enable gpu: already enabled")
	}

	kernels := make([]*gpu.DenseKernel, 0, len(n.Layers))
	for li, l := range n.Layers {
		k, err := gpu.NewDenseKernel(dev, l.InputDim, l.OutputDim, maxBatch)
		if err != nil {
			for _, built := range kernels {
				built.Close()
			}
			return fmt.Errorf("enable gpu: layer %d: %w", li, err)
		}
		kernels = append(kernels, k)
	}

	n.dev = dev
	n.kernels = kernels
	return nil
}

// ReleaseGPU frees the per-layer kernels. The network falls back to the
// host path on the next Forward.
func (n *Network) ReleaseGPU() {
	for _, k := range n.kernels {
		k.Close()
	}
	n.kernels = nil
	n.dev = nil
}

// forwardLayerGPU runs the linear part of one layer on the device. Weights
// are re-uploaded every call because the optimizer mutates them between
// minibatches.
func (n *Network) forwardLayerGPU(li int, input []float32, batch int) ([]float32, error) {
	k := n.kernels[li]
	l := n.Layers[li]

	if err := k.UploadParams(l.Weights, l.Bias); err != nil {
		return nil, fmt.Errorf("layer %d upload: %w", li, err)
	}
	pre, err := k.Forward(input, batch)
	if err != nil {
		return nil, fmt.Errorf("layer %d dispatch: %w", li, err)
	}
	return pre, nil
}
