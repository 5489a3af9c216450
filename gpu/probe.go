package gpu

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// Report is a portable summary of one adapter's compute capabilities.
type Report struct {
	WhenISO  string         `json:"when_iso"`
	Adapter  AdapterSummary `json:"adapter"`
	Limits   Limits         `json:"limits"`
	Features []string       `json:"features"`

	// Recommended 1-D workgroup width for compute dispatches on this adapter.
	WorkgroupX uint32 `json:"workgroup_x"`
}

// Limits carries the compute-relevant adapter limits.
type Limits struct {
	MaxComputeInvocationsPerWorkgroup uint32 `json:"max_compute_invocations_per_workgroup"`
	MaxComputeWorkgroupSizeX          uint32 `json:"max_compute_workgroup_size_x"`
	MaxComputeWorkgroupSizeY          uint32 `json:"max_compute_workgroup_size_y"`
	MaxComputeWorkgroupSizeZ          uint32 `json:"max_compute_workgroup_size_z"`
	MaxComputeWorkgroupsPerDimension  uint32 `json:"max_compute_workgroups_per_dimension"`
	MaxStorageBufferBindingSize       uint64 `json:"max_storage_buffer_binding_size"`
	MaxBufferSize                     uint64 `json:"max_buffer_size"`
}

// Probe opens the adapter at the given device id and synthesizes a
// capability report. The host device (-1) has no adapter to probe.
func Probe(deviceID int) (*Report, error) {
	if deviceID < 0 {
		return nil, fmt.Errorf("probe: device id %d is the host CPU, nothing to probe", deviceID)
	}

	d, err := Open(deviceID)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	limits := d.Adapter.GetLimits()

	var feats []string
	for _, f := range d.Adapter.EnumerateFeatures() {
		feats = append(feats, f.String())
	}

	rep := &Report{
		WhenISO: time.Now().UTC().Format(time.RFC3339),
		Adapter: d.Summary(),
		Limits: Limits{
			MaxComputeInvocationsPerWorkgroup: limits.Limits.MaxComputeInvocationsPerWorkgroup,
			MaxComputeWorkgroupSizeX:          limits.Limits.MaxComputeWorkgroupSizeX,
			MaxComputeWorkgroupSizeY:          limits.Limits.MaxComputeWorkgroupSizeY,
			MaxComputeWorkgroupSizeZ:          limits.Limits.MaxComputeWorkgroupSizeZ,
			MaxComputeWorkgroupsPerDimension:  limits.Limits.MaxComputeWorkgroupsPerDimension,
			MaxStorageBufferBindingSize:       limits.Limits.MaxStorageBufferBindingSize,
			MaxBufferSize:                     limits.Limits.MaxBufferSize,
		},
		Features:   feats,
		WorkgroupX: chooseWorkgroup(limits),
	}
	return rep, nil
}

// chooseWorkgroup picks a conservative 1-D workgroup width that fits the
// adapter limits. DenseKernel dispatches with this width.
func chooseWorkgroup(l wgpu.SupportedLimits) uint32 {
	maxX := l.Limits.MaxComputeWorkgroupSizeX
	maxTot := l.Limits.MaxComputeInvocationsPerWorkgroup

	candidates := []uint32{256, 128, 64, 32, 16, 8, 4, 1}
	for _, c := range candidates {
		if c <= maxX && c <= maxTot {
			return c
		}
	}
	// absolute portability fallback
	return 1
}
