package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/soak/nn"
)

func TestRunCollectsProgress(t *testing.T) {
	result, err := Run(Options{
		Activation:    nn.Sigmoid{},
		HiddenDim:     4,
		MinibatchSize: 5,
		NumSamples:    100,
		ProgressEvery: 5,
		Seed:          1,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	// 20 minibatches, recorded at 0, 5, 10, 15
	assert.Len(t, result.Losses, 4)
	assert.Len(t, result.Errors, 4)
	assert.Greater(t, result.FinalLoss, 0.0)

	assert.Equal(t, 2, result.Network.InputDim)
	assert.Equal(t, 2, result.Network.OutputDim)
	assert.Equal(t, 4, result.Network.HiddenDim)
	assert.Equal(t, "sigmoid", result.Network.Activation)
	assert.Equal(t, 2*4+4+4*2+2, result.Network.Parameters)
	assert.False(t, result.Network.GPU)
}

func TestRunLossTrendsDown(t *testing.T) {
	result, err := Run(Options{
		Activation:    nn.Sigmoid{},
		HiddenDim:     8,
		MinibatchSize: 10,
		NumSamples:    2000,
		ProgressEvery: 5,
		Seed:          0,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Losses), 20)

	// Average a few recorded points at each end so single noisy
	// minibatches cannot mask the trend.
	head := mean(result.Losses[:10])
	tail := mean(result.Losses[len(result.Losses)-10:])
	assert.Less(t, tail, head, "loss should fall over 200 minibatches")
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func TestRunDeterministicForSeed(t *testing.T) {
	opts := Options{
		Activation:    nn.Tanh{},
		HiddenDim:     4,
		MinibatchSize: 5,
		NumSamples:    200,
		ProgressEvery: 10,
		Seed:          7,
	}

	a, err := Run(opts)
	require.NoError(t, err)
	b, err := Run(opts)
	require.NoError(t, err)

	assert.Equal(t, a.Losses, b.Losses)
	assert.Equal(t, a.FinalLoss, b.FinalLoss)
	assert.Equal(t, a.FinalError, b.FinalError)
}

func TestRunRejectsBadOptions(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err, "missing activation")

	_, err = Run(Options{
		Activation:    nn.Sigmoid{},
		NumSamples:    5,
		MinibatchSize: 10,
	})
	assert.Error(t, err, "fewer samples than one minibatch")
}
