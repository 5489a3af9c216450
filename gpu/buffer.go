package gpu

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// readTimeout bounds the map-async poll loop when reading buffers back.
const readTimeout = 2 * time.Second

// NewFloatBuffer creates a device buffer initialized with the given float32
// data.
func (d *Device) NewFloatBuffer(data []float32, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	if !d.Accelerated() {
		return nil, fmt.Errorf("new float buffer: host device has no buffers")
	}

	buf, err := d.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Contents: wgpu.ToBytes(data),
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer: %v", err)
	}
	return buf, nil
}

// NewEmptyBuffer creates an uninitialized device buffer of sizeBytes.
func (d *Device) NewEmptyBuffer(label string, sizeBytes uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	if !d.Accelerated() {
		return nil, fmt.Errorf("new buffer: host device has no buffers")
	}

	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  sizeBytes,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %v", label, err)
	}
	return buf, nil
}

// ReadFloats copies count float32 values out of a buffer through a staging
// buffer, waiting on the map with a bounded poll loop.
func (d *Device) ReadFloats(buffer *wgpu.Buffer, count int) ([]float32, error) {
	if !d.Accelerated() {
		return nil, fmt.Errorf("read floats: host device has no buffers")
	}

	sizeBytes := uint64(count * 4)
	stagingBuf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ReadStaging",
		Size:  sizeBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %v", err)
	}
	defer stagingBuf.Destroy()

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %v", err)
	}
	encoder.CopyBufferToBuffer(buffer, 0, stagingBuf, 0, sizeBytes)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish command: %v", err)
	}
	d.Queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error

	err = stagingBuf.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(status wgpu.BufferMapAsyncStatus) {
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
		d.Device.Poll(false, nil)

		select {
		case <-done:
			break Loop
		case <-timeout:
			return nil, fmt.Errorf("buffer read timed out after %v", readTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if mapErr != nil {
		return nil, mapErr
	}

	data := stagingBuf.GetMappedRange(0, uint(sizeBytes))
	if data == nil {
		return nil, fmt.Errorf("failed to get mapped range")
	}

	result := make([]float32, count)
	copy(result, wgpu.FromBytes[float32](data))
	stagingBuf.Unmap()

	return result, nil
}
