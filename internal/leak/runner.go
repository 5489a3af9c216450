package leak

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/openfluke/soak/gpu"
	"github.com/openfluke/soak/internal/synth"
	"github.com/openfluke/soak/nn"
)

// The experiment shape: two input features, two classes.
const (
	inputDim         = 2
	numOutputClasses = 2
)

// Options configures one soak run.
type Options struct {
	Activation    nn.Activation
	HiddenLayers  int     // dense layers before the output layer
	HiddenDim     int     // units per hidden layer
	MinibatchSize int     // samples per training step
	NumSamples    int     // total samples; iterations = NumSamples / MinibatchSize
	LearningRate  float32 // per-minibatch
	Seed          int64
	Device        *gpu.Device
	Heuristic     Config
	Logger        *slog.Logger
}

// Report summarizes a completed run, whether or not the heuristic fired.
type Report struct {
	Activation        string  `json:"activation"`
	Iterations        int     `json:"iterations"`
	FirstRSSBytes     uint64  `json:"first_rss_bytes"`
	FinalRSSBytes     uint64  `json:"final_rss_bytes"`
	IncreaseFraction  float64 `json:"increase_fraction"`
	WindowGrowthBytes float64 `json:"window_growth_bytes"`
	Accelerated       bool    `json:"accelerated"`
}

func withDefaults(opts Options) Options {
	if opts.HiddenLayers == 0 {
		opts.HiddenLayers = 1
	}
	if opts.HiddenDim == 0 {
		opts.HiddenDim = 2
	}
	if opts.MinibatchSize == 0 {
		opts.MinibatchSize = 1
	}
	if opts.NumSamples == 0 {
		opts.NumSamples = 100000
	}
	if opts.LearningRate == 0 {
		opts.LearningRate = 0.5
	}
	if opts.Heuristic == (Config{}) {
		opts.Heuristic = DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return opts
}

// Run trains a tiny classifier on one fixed minibatch for many iterations,
// sampling resident memory before every step, then applies the heuristic.
//
// The returned Report is populated whenever the loop completed; the error is
// a *LeakError if the heuristic fired, or an unmodified device/runtime error
// if the run itself failed.
func Run(opts Options) (*Report, error) {
	opts = withDefaults(opts)
	if opts.Activation == nil {
		return nil, fmt.Errorf("leak run: no activation given")
	}

	iterations := opts.NumSamples / opts.MinibatchSize
	if iterations <= 0 {
		return nil, fmt.Errorf("leak run: %d samples with minibatch %d leaves no iterations",
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

	// One fixed minibatch, reused every iteration. Fresh data would hide
	// per-step leaks behind allocator noise.
	batch := synth.Generate(rng, opts.MinibatchSize, inputDim, numOutputClasses)

	sampler, err := NewSampler()
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("soak run starting",
		"activation", opts.Activation.Name(),
		"iterations", iterations,
		"hidden_dim", opts.HiddenDim,
		"accelerated", net.Accelerated(),
	)

	trace := NewTrace(iterations)
	for i := 0; i < iterations; i++ {
		rss, err := sampler.RSS()
		if err != nil {
			return nil, err
		}
		trace.Append(rss)

		if err := trainer.TrainMinibatch(batch.Features, batch.Labels, batch.Size); err != nil {
			return nil, err
		}

		if i > 0 && i%10000 == 0 {
			opts.Logger.Debug("soak progress", "iteration", i, "rss_bytes", rss)
		}
	}

	report := &Report{
		Activation:        opts.Activation.Name(),
		Iterations:        trace.Len(),
		FirstRSSBytes:     uint64(trace.First()),
		FinalRSSBytes:     uint64(trace.Final()),
		IncreaseFraction:  trace.IncreaseFraction(),
		WindowGrowthBytes: trace.WindowGrowth(opts.Heuristic.Window),
		Accelerated:       net.Accelerated(),
	}

	opts.Logger.Info("soak run finished",
		"activation", report.Activation,
		"increase_fraction", report.IncreaseFraction,
		"window_growth_bytes", report.WindowGrowthBytes,
	)

	return report, opts.Heuristic.Check(opts.Activation.Name(), trace)
}
