package gpu

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// DenseKernel executes the linear part of one dense layer on a device:
// output = input @ weights + bias. Activations are applied by the caller on
// the host. Buffers are allocated once for a fixed batch size so a long
// training loop allocates nothing per iteration.
type DenseKernel struct {
	dev *Device

	inputDim  int
	outputDim int
	batch     int
	workgroup uint32

	inputBuf   *wgpu.Buffer
	outputBuf  *wgpu.Buffer
	weightBuf  *wgpu.Buffer
	biasBuf    *wgpu.Buffer
	stagingBuf *wgpu.Buffer

	pipeline        *wgpu.ComputePipeline
	bindGroupLayout *wgpu.BindGroupLayout
	bindGroup       *wgpu.BindGroup

	workgroupsX uint32
}

// NewDenseKernel compiles the matmul pipeline and allocates buffers for a
// layer of the given shape and a fixed minibatch size.
func NewDenseKernel(dev *Device, inputDim, outputDim, batch int) (*DenseKernel, error) {
	if !dev.Accelerated() {
		return nil, fmt.Errorf("dense kernel: host device cannot compile pipelines")
	}
	if inputDim <= 0 || outputDim <= 0 || batch <= 0 {
		return nil, fmt.Errorf("dense kernel: invalid shape %dx%d batch %d", inputDim, outputDim, batch)
	}

	k := &DenseKernel{
		dev:       dev,
		inputDim:  inputDim,
		outputDim: outputDim,
		batch:     batch,
		workgroup: chooseWorkgroup(dev.Adapter.GetLimits()),
	}

	if err := k.allocateBuffers(); err != nil {
		k.Close()
		return nil, err
	}
	if err := k.compile(); err != nil {
		k.Close()
		return nil, err
	}
	if err := k.createBindGroup(); err != nil {
		k.Close()
		return nil, err
	}

	totalThreads := uint32(outputDim * batch)
	k.workgroupsX = (totalThreads + k.workgroup - 1) / k.workgroup
	return k, nil
}

// generateShader emits WGSL for the layer shape. Weights are indexed
// input-major, the same layout the host keeps, so uploads need no transpose.
func (k *DenseKernel) generateShader() string {
	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> input : array<f32>;
		@group(0) @binding(1) var<storage, read_write> output : array<f32>;
		@group(0) @binding(2) var<storage, read> weights : array<f32>;
		@group(0) @binding(3) var<storage, read> biases : array<f32>;

		@compute @workgroup_size(%d)
		fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
			let idx = gid.x;
			let n_out = %du;
			let n_in = %du;

			if (idx >= arrayLength(&output)) {
				return;
			}

			// idx = sample_idx * n_out + out_idx
			let sample_idx = idx / n_out;
			let out_idx = idx %% n_out;

			var sum: f32 = biases[out_idx];
			let input_offset = sample_idx * n_in;

			for (var i: u32 = 0u; i < n_in; i++) {
				sum += weights[i * n_out + out_idx] * input[input_offset + i];
			}

			output[idx] = sum;
		}
	`, k.workgroup, k.outputDim, k.inputDim)
}

func (k *DenseKernel) allocateBuffers() error {
	var err error

	k.inputBuf, err = k.dev.NewEmptyBuffer("Dense_In", uint64(k.inputDim*k.batch*4),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	k.outputBuf, err = k.dev.NewEmptyBuffer("Dense_Out", uint64(k.outputDim*k.batch*4),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	if err != nil {
		return err
	}

	k.weightBuf, err = k.dev.NewEmptyBuffer("Dense_W", uint64(k.inputDim*k.outputDim*4),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst|wgpu.BufferUsageCopySrc)
	if err != nil {
		return fmt.Errorf("weight buf: %v", err)
	}

	k.biasBuf, err = k.dev.NewEmptyBuffer("Dense_B", uint64(k.outputDim*4),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst|wgpu.BufferUsageCopySrc)
	if err != nil {
		return fmt.Errorf("bias buf: %v", err)
	}

	k.stagingBuf, err = k.dev.NewEmptyBuffer("Dense_Staging", uint64(k.outputDim*k.batch*4),
		wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	return nil
}

func (k *DenseKernel) compile() error {
	shader := k.generateShader()
	module, err := k.dev.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Dense_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shader},
	})
	if err != nil {
		return fmt.Errorf("shader compile: %v", err)
	}

	// Explicit bind group layout; auto layout misbehaves on some backends.
	k.bindGroupLayout, err = k.dev.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Dense_BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // Input
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},         // Output
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // Weights
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}}, // Biases
		},
	})
	if err != nil {
		return fmt.Errorf("create bgl: %v", err)
	}

	pipelineLayout, err := k.dev.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Dense_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{k.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %v", err)
	}

	k.pipeline, err = k.dev.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "Dense_Pipe",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline create: %v", err)
	}
	module.Release()
	return nil
}

func (k *DenseKernel) createBindGroup() error {
	var err error
	k.bindGroup, err = k.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Dense_Bind",
		Layout: k.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.inputBuf, Size: k.inputBuf.GetSize()},
			{Binding: 1, Buffer: k.outputBuf, Size: k.outputBuf.GetSize()},
			{Binding: 2, Buffer: k.weightBuf, Size: k.weightBuf.GetSize()},
			{Binding: 3, Buffer: k.biasBuf, Size: k.biasBuf.GetSize()},
		},
	})
	return err
}

// UploadParams writes the current weights and bias to the device. Weights
// use the host layout [inputDim * outputDim], input-major.
func (k *DenseKernel) UploadParams(weights, bias []float32) error {
	if len(weights) != k.inputDim*k.outputDim {
		return fmt.Errorf("upload params: weight length %d does not match %dx%d",
			len(weights), k.inputDim, k.outputDim)
	}
	if len(bias) != k.outputDim {
		return fmt.Errorf("upload params: bias length %d does not match output dim %d",
			len(bias), k.outputDim)
	}

	k.dev.Queue.WriteBuffer(k.weightBuf, 0, wgpu.ToBytes(weights))
	k.dev.Queue.WriteBuffer(k.biasBuf, 0, wgpu.ToBytes(bias))
	return nil
}

// DownloadParams reads the weights and bias back from the device.
func (k *DenseKernel) DownloadParams() ([]float32, []float32, error) {
	weights, err := k.dev.ReadFloats(k.weightBuf, k.inputDim*k.outputDim)
	if err != nil {
		return nil, nil, fmt.Errorf("download weights: %w", err)
	}
	bias, err := k.dev.ReadFloats(k.biasBuf, k.outputDim)
	if err != nil {
		return nil, nil, fmt.Errorf("download bias: %w", err)
	}
	return weights, bias, nil
}

// Forward dispatches the matmul for exactly the batch size the kernel was
// built with and reads the pre-activation values back.
func (k *DenseKernel) Forward(input []float32, batch int) ([]float32, error) {
	if batch != k.batch {
		return nil, fmt.Errorf("dense forward: batch %d does not match kernel batch %d", batch, k.batch)
	}
	if len(input) != batch*k.inputDim {
		return nil, fmt.Errorf("dense forward: input length %d does not match batch %d x input dim %d",
			len(input), batch, k.inputDim)
	}

	k.dev.Queue.WriteBuffer(k.inputBuf, 0, wgpu.ToBytes(input))

	encoder, err := k.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("create encoder: %v", err)
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, k.bindGroup, nil)
	pass.DispatchWorkgroups(k.workgroupsX, 1, 1)
	pass.End()

	outBytes := uint64(k.outputDim * batch * 4)
	encoder.CopyBufferToBuffer(k.outputBuf, 0, k.stagingBuf, 0, outBytes)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("finish encoder: %v", err)
	}
	k.dev.Queue.Submit(cmd)

	return k.readStaging(int(batch * k.outputDim))
}

// readStaging maps the persistent staging buffer and copies the results out.
func (k *DenseKernel) readStaging(count int) ([]float32, error) {
	sizeBytes := uint64(count * 4)

	done := make(chan struct{})
	var mapErr error

	err := k.stagingBuf.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, fmt.Errorf("MapAsync failed: %v", err)
	}

	timeout := time.After(readTimeout)
Loop:
	for {
		k.dev.Device.Poll(false, nil)

		select {
		case <-done:
			break Loop
		case <-timeout:
			return nil, fmt.Errorf("dense forward read timed out after %v", readTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if mapErr != nil {
		return nil, mapErr
	}

	data := k.stagingBuf.GetMappedRange(0, uint(sizeBytes))
	if data == nil {
		return nil, fmt.Errorf("failed to get mapped range")
	}

	result := make([]float32, count)
	copy(result, wgpu.FromBytes[float32](data))
	k.stagingBuf.Unmap()

	return result, nil
}

// Close releases all kernel resources.
func (k *DenseKernel) Close() {
	if k.inputBuf != nil {
		k.inputBuf.Destroy()
		k.inputBuf = nil
	}
	if k.outputBuf != nil {
		k.outputBuf.Destroy()
		k.outputBuf = nil
	}
	if k.weightBuf != nil {
		k.weightBuf.Destroy()
		k.weightBuf = nil
	}
	if k.biasBuf != nil {
		k.biasBuf.Destroy()
		k.biasBuf = nil
	}
	if k.stagingBuf != nil {
		k.stagingBuf.Destroy()
		k.stagingBuf = nil
	}
	if k.pipeline != nil {
		k.pipeline.Release()
		k.pipeline = nil
	}
	if k.bindGroup != nil {
		k.bindGroup.Release()
		k.bindGroup = nil
	}
}
