// Package train runs the example training loop: a small classifier trained
// on fresh synthetic minibatches with periodic progress collection.
package train

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/openfluke/soak/gpu"
	"github.com/openfluke/soak/internal/synth"
	"github.com/openfluke/soak/nn"
)

const (
	inputDim         = 2
	numOutputClasses = 2
)

// Options configures the example run.
type Options struct {
	Activation    nn.Activation
	HiddenLayers  int
	HiddenDim     int
	MinibatchSize int
	NumSamples    int
	LearningRate  float32
	ProgressEvery int // collect loss/error every N minibatches
	Seed          int64
	Device        *gpu.Device
	Logger        *slog.Logger
}

// Result carries the loss/error series sampled at the progress frequency,
// plus the final minibatch averages.
type Result struct {
	Losses     []float64  `json:"losses"`
	Errors     []float64  `json:"errors"`
	FinalLoss  float64    `json:"final_loss"`
	FinalError float64    `json:"final_error"`
	Network    nn.Summary `json:"network"`
}

func withDefaults(opts Options) Options {
	if opts.HiddenLayers == 0 {
		opts.HiddenLayers = 1
	}
	if opts.HiddenDim == 0 {
		opts.HiddenDim = 50
	}
	if opts.MinibatchSize == 0 {
		opts.MinibatchSize = 10
	}
	if opts.NumSamples == 0 {
		opts.NumSamples = 1000
	}
	if opts.LearningRate == 0 {
		opts.LearningRate = 0.5
	}
	if opts.ProgressEvery == 0 {
		opts.ProgressEvery = 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// Run trains on fresh random minibatches and collects the loss and
// classification error at the progress frequency.
func Run(opts Options) (*Result, error) {
	opts = withDefaults(opts)
	if opts.Activation == nil {
		return nil, fmt.Errorf("train run: no activation given")
	}

	numMinibatches := opts.NumSamples / opts.MinibatchSize
	if numMinibatches <= 0 {
		return nil, fmt.Errorf("train run: %d samples with minibatch %d leaves no minibatches",
			opts.NumSamples, opts.MinibatchSize)
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	net := nn.NewClassifier(inputDim, numOutputClasses, opts.HiddenDim, opts.HiddenLayers, opts.Activation, rng)
	if opts.Device.Accelerated() {
		if err := net.EnableGPU(opts.Device, opts.MinibatchSize); err != nil {
			return nil, err
		}
		defer net.ReleaseGPU()
	}
	trainer := nn.NewTrainer(net, nn.NewSGD(), opts.LearningRate)

	opts.Logger.Info("training starting",
		"activation", opts.Activation.Name(),
		"minibatches", numMinibatches,
		"hidden_dim", opts.HiddenDim,
		"parameters", net.ParameterCount(),
	)

	result := &Result{Network: net.Summarize()}
	for mb := 0; mb < numMinibatches; mb++ {
		batch := synth.Generate(rng, opts.MinibatchSize, inputDim, numOutputClasses)

		if err := trainer.TrainMinibatch(batch.Features, batch.Labels, batch.Size); err != nil {
			return nil, err
		}

		if loss, errRate, ok := nn.TrainingProgress(trainer, mb, opts.ProgressEvery); ok {
			result.Losses = append(result.Losses, loss)
			result.Errors = append(result.Errors, errRate)
			opts.Logger.Info("training progress",
				"minibatch", mb,
				"loss", loss,
				"error", errRate,
			)
		}
	}

	result.FinalLoss = trainer.PreviousMinibatchLoss()
	result.FinalError = trainer.PreviousMinibatchError()
	return result, nil
}
