package gpu

import (
	"fmt"
	"strings"
	"testing"

	"github.com/openfluke/webgpu/wgpu"
)

// TestGenerateShader verifies the WGSL carries the layer shape and the
// input-major weight indexing
func TestGenerateShader(t *testing.T) {
	k := &DenseKernel{inputDim: 3, outputDim: 5, batch: 2, workgroup: 64}
	shader := k.generateShader()

	wantFragments := []string{
		"@workgroup_size(64)",
		"let n_out = 5u",
		"let n_in = 3u",
		"@group(0) @binding(0) var<storage, read> input",
		"@group(0) @binding(1) var<storage, read_write> output",
		"@group(0) @binding(2) var<storage, read> weights",
		"@group(0) @binding(3) var<storage, read> biases",
		"arrayLength(&output)",
		"weights[i * n_out + out_idx]",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(shader, frag) {
			t.Errorf("Shader missing %q", frag)
		}
	}

	// The %% escape must not survive into the emitted WGSL
	if strings.Contains(shader, "%%") {
		t.Error("Shader contains an unexpanded format escape")
	}
}

// TestGenerateShaderShapes verifies the shape constants follow the kernel
func TestGenerateShaderShapes(t *testing.T) {
	cases := []struct {
		inputDim, outputDim int
		workgroup           uint32
	}{
		{2, 2, 256},
		{50, 2, 32},
		{2, 50, 1},
	}
	for _, c := range cases {
		k := &DenseKernel{inputDim: c.inputDim, outputDim: c.outputDim, batch: 1, workgroup: c.workgroup}
		shader := k.generateShader()

		for _, frag := range []string{
			fmt.Sprintf("let n_in = %du", c.inputDim),
			fmt.Sprintf("let n_out = %du", c.outputDim),
		} {
			if !strings.Contains(shader, frag) {
				t.Errorf("shape %dx%d: shader missing %q", c.inputDim, c.outputDim, frag)
			}
		}
	}
}

// TestChooseWorkgroup verifies the candidate ladder against adapter limits
func TestChooseWorkgroup(t *testing.T) {
	limits := func(maxX, maxTotal uint32) wgpu.SupportedLimits {
		return wgpu.SupportedLimits{Limits: wgpu.Limits{
			MaxComputeWorkgroupSizeX:          maxX,
			MaxComputeInvocationsPerWorkgroup: maxTotal,
		}}
	}

	cases := []struct {
		maxX, maxTotal uint32
		want           uint32
	}{
		{1024, 1024, 256}, // desktop-class adapter takes the widest candidate
		{128, 1024, 128},  // clamped by workgroup size
		{1024, 64, 64},    // clamped by total invocations
		{100, 100, 64},    // falls to the next power of two below the limit
		{2, 2, 1},
		{0, 0, 1}, // absolute fallback
	}
	for _, c := range cases {
		if got := chooseWorkgroup(limits(c.maxX, c.maxTotal)); got != c.want {
			t.Errorf("chooseWorkgroup(maxX=%d, maxTotal=%d): expected %d, got %d",
				c.maxX, c.maxTotal, c.want, got)
		}
	}
}

// TestDenseKernelRejectsHost verifies kernels cannot be built on the CPU device
func TestDenseKernelRejectsHost(t *testing.T) {
	if _, err := NewDenseKernel(CPU(), 2, 2, 1); err == nil {
		t.Error("Expected error when compiling on the host device")
	}
}

// TestDenseKernelMatchesHost runs the compiled kernel against hand-computed
// values. Skips on machines with no WebGPU adapter.
func TestDenseKernelMatchesHost(t *testing.T) {
	adapters, err := List()
	if err != nil || len(adapters) == 0 {
		t.Skip("no WebGPU adapters available")
	}

	dev, err := Open(0)
	if err != nil {
		t.Skipf("adapter 0 would not open: %v", err)
	}
	defer dev.Close()

	k, err := NewDenseKernel(dev, 2, 3, 2)
	if err != nil {
		t.Fatalf("NewDenseKernel failed: %v", err)
	}
	defer k.Close()

	weights := []float32{1, 2, 3, 4, 5, 6} // input-major [2][3]
	bias := []float32{0.5, -0.5, 0}
	if err := k.UploadParams(weights, bias); err != nil {
		t.Fatalf("UploadParams failed: %v", err)
	}

	gotW, gotB, err := k.DownloadParams()
	if err != nil {
		t.Fatalf("DownloadParams failed: %v", err)
	}
	for i := range weights {
		if gotW[i] != weights[i] {
			t.Errorf("weight %d: expected %f, got %f", i, weights[i], gotW[i])
		}
	}
	for i := range bias {
		if gotB[i] != bias[i] {
			t.Errorf("bias %d: expected %f, got %f", i, bias[i], gotB[i])
		}
	}

	out, err := k.Forward([]float32{1, 2, 0.5, -1}, 2)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	// sample 0 = [1 2]: [0.5+1+8, -0.5+2+10, 0+3+12]
	// sample 1 = [0.5 -1]: [0.5+0.5-4, -0.5+1-5, 0+1.5-6]
	want := []float32{9.5, 11.5, 15, -3, -4.5, -4.5}
	if len(out) != len(want) {
		t.Fatalf("Expected %d outputs, got %d", len(want), len(out))
	}
	for i := range want {
		if diff := out[i] - want[i]; diff > 1e-4 || diff < -1e-4 {
			t.Errorf("out[%d]: expected %f, got %f", i, want[i], out[i])
		}
	}

	// The batch size is fixed at construction
	if _, err := k.Forward([]float32{1, 2}, 1); err == nil {
		t.Error("Expected error for a mismatched batch size")
	}
}
