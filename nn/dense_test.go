package nn

import (
	"math"
	"math/rand"
	"testing"
)

// TestLinearKnownWeights verifies the input-major matmul against hand
// computed values
func TestLinearKnownWeights(t *testing.T) {
	l := &Layer{
		InputDim:  2,
		OutputDim: 3,
		// Weights[i*OutputDim+o]: input 0 drives output 0, input 1 drives output 1
		Weights: []float32{
			1, 0, 0,
			0, 1, 0,
		},
		Bias: []float32{0.1, 0.2, 0.3},
		Act:  Identity{},
	}

	out := l.linearCPU([]float32{1.0, 2.0}, 1)

	// Expected: [1*1 + 2*0 + 0.1, 1*0 + 2*1 + 0.2, 0 + 0.3] = [1.1, 2.2, 0.3]
	want := []float32{1.1, 2.2, 0.3}
	if len(out) != 3 {
		t.Fatalf("Expected 3 outputs, got %d", len(out))
	}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-5 {
			t.Errorf("out[%d]: expected %f, got %f", i, want[i], out[i])
		}
	}
}

// TestLinearBatch verifies each sample in a minibatch is handled independently
func TestLinearBatch(t *testing.T) {
	l := &Layer{
		InputDim:  2,
		OutputDim: 1,
		Weights:   []float32{2, 3}, // out = 2*x0 + 3*x1
		Bias:      []float32{1},
		Act:       Identity{},
	}

	out := l.linearCPU([]float32{1, 0, 0, 1, 1, 1}, 3)

	want := []float32{3, 4, 6} // 2+1, 3+1, 2+3+1
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-5 {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], out[i])
		}
	}
}

// TestHeInitialization verifies the weight scale and zero bias
func TestHeInitialization(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := initDenseLayer(100, 200, Sigmoid{}, rng)

	if len(l.Weights) != 100*200 {
		t.Fatalf("Expected %d weights, got %d", 100*200, len(l.Weights))
	}

	var sum, sumSq float64
	for _, w := range l.Weights {
		sum += float64(w)
		sumSq += float64(w) * float64(w)
	}
	n := float64(len(l.Weights))
	mean := sum / n
	stddev := math.Sqrt(sumSq/n - mean*mean)

	wantStddev := math.Sqrt(2.0 / 100.0)
	if math.Abs(mean) > 0.01 {
		t.Errorf("weight mean: expected near 0, got %f", mean)
	}
	if math.Abs(stddev-wantStddev) > 0.05*wantStddev {
		t.Errorf("weight stddev: expected about %f, got %f", wantStddev, stddev)
	}

	for i, b := range l.Bias {
		if b != 0 {
			t.Fatalf("bias[%d]: expected 0, got %f", i, b)
		}
	}
}

// TestNetworkForwardShape verifies classifier construction and output shape
func TestNetworkForwardShape(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	net := NewClassifier(2, 2, 50, 1, Sigmoid{}, rng)

	if len(net.Layers) != 2 {
		t.Fatalf("Expected 2 layers (hidden + output), got %d", len(net.Layers))
	}
	// 2*50 + 50 hidden, 50*2 + 2 output
	if got := net.ParameterCount(); got != 2*50+50+50*2+2 {
		t.Errorf("Expected %d parameters, got %d", 2*50+50+50*2+2, got)
	}

	logits, err := net.Forward([]float32{1, 2, 3, 4, 5, 6}, 3)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if len(logits) != 3*2 {
		t.Errorf("Expected %d logits, got %d", 3*2, len(logits))
	}

	summary := net.Summarize()
	if summary.HiddenLayers != 1 || summary.HiddenDim != 50 || summary.Activation != "sigmoid" {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.GPU {
		t.Error("Host network should not report GPU")
	}
	if len(summary.Layers) != 2 {
		t.Fatalf("Expected 2 layer entries, got %d", len(summary.Layers))
	}
	if summary.Layers[0].Type != "dense" || summary.Layers[0].OutputDim != 50 {
		t.Errorf("Unexpected hidden layer info: %+v", summary.Layers[0])
	}
	if summary.Layers[1].Activation != "identity" || summary.Layers[1].Parameters != 50*2+2 {
		t.Errorf("Unexpected output layer info: %+v", summary.Layers[1])
	}
}

// TestForwardValidation verifies shape mismatches are rejected
func TestForwardValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	net := NewClassifier(2, 2, 4, 1, Sigmoid{}, rng)

	if _, err := net.Forward([]float32{1, 2}, 0); err == nil {
		t.Error("Expected error for zero batch")
	}
	if _, err := net.Forward([]float32{1, 2, 3}, 2); err == nil {
		t.Error("Expected error for feature length mismatch")
	}
	if err := net.Backward([]float32{1, 0}, 1); err == nil {
		t.Error("Expected error for backward without forward")
	}
}

// TestBackwardNumericGradient checks analytic gradients against central
// differences of the loss for every parameter of a small network
func TestBackwardNumericGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	net := NewClassifier(2, 2, 3, 1, Tanh{}, rng)

	features := []float32{0.5, -1.0, 2.0, 0.25}
	labels := []float32{1, 0, 0, 1}
	batch := 2

	loss := func() float64 {
		logits, err := net.Forward(features, batch)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		return CrossEntropyWithSoftmax(logits, labels, batch)
	}

	// Analytic gradients
	loss()
	if err := net.Backward(labels, batch); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	const eps = 1e-3
	check := func(name string, params, grads []float32) {
		for j := range params {
			orig := params[j]
			params[j] = orig + eps
			plus := loss()
			params[j] = orig - eps
			minus := loss()
			params[j] = orig

			numeric := (plus - minus) / (2 * eps)
			analytic := float64(grads[j])
			if math.Abs(analytic-numeric) > 1e-3+0.02*math.Abs(numeric) {
				t.Errorf("%s[%d]: analytic %f, numeric %f", name, j, analytic, numeric)
			}
		}
	}

	for _, l := range net.Layers {
		check("layer weights", l.Weights, l.GradWeights)
		check("layer bias", l.Bias, l.GradBias)
	}
}

// TestSoftmaxRow verifies normalization and overflow safety
func TestSoftmaxRow(t *testing.T) {
	probs := make([]float32, 2)

	softmaxRow([]float32{0, 0}, probs)
	if math.Abs(float64(probs[0]-0.5)) > 1e-6 || math.Abs(float64(probs[1]-0.5)) > 1e-6 {
		t.Errorf("softmax([0 0]): expected [0.5 0.5], got %v", probs)
	}

	// Large logits must not overflow thanks to the max subtraction
	softmaxRow([]float32{1000, 0}, probs)
	if math.IsNaN(float64(probs[0])) || math.Abs(float64(probs[0]-1.0)) > 1e-6 {
		t.Errorf("softmax([1000 0]): expected [1 0], got %v", probs)
	}

	sum := probs[0] + probs[1]
	if math.Abs(float64(sum-1.0)) > 1e-6 {
		t.Errorf("softmax should sum to 1, got %f", sum)
	}
}
