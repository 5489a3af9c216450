package gpu

import (
	"fmt"
	"strings"

	"github.com/openfluke/webgpu/wgpu"
)

// Device is an opened execution device. Device id -1 is the host CPU and
// carries no WebGPU handles; non-negative ids select the adapter at that
// index in enumeration order.
type Device struct {
	ID       int
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	summary AdapterSummary
	closed  bool
}

// AdapterSummary is a portable description of one adapter.
type AdapterSummary struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Backend  string `json:"backend"`
	Type     string `json:"type"`
	VendorID string `json:"vendor_id_hex"`
	DeviceID string `json:"device_id_hex"`
	Driver   string `json:"driver,omitempty"`
}

// CPU returns the host device.
func CPU() *Device {
	return &Device{ID: -1}
}

// Open resolves a device id. -1 returns the host device without touching the
// WebGPU stack. Ids >= 0 enumerate adapters and open the one at that index;
// an out-of-range index or a failed adapter/device request is returned as an
// error for the caller to propagate.
func Open(deviceID int) (*Device, error) {
	if deviceID < 0 {
		return CPU(), nil
	}

	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("failed to create WebGPU instance")
	}

	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Release()
		return nil, fmt.Errorf("no WebGPU adapters available")
	}
	if deviceID >= len(adapters) {
		inst.Release()
		return nil, fmt.Errorf("device id %d out of range: %d adapter(s) available", deviceID, len(adapters))
	}

	adapter := adapters[deviceID]
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		inst.Release()
		return nil, fmt.Errorf("request device for adapter %d: %w", deviceID, err)
	}

	d := &Device{
		ID:       deviceID,
		Instance: inst,
		Adapter:  adapter,
		Device:   dev,
		Queue:    dev.GetQueue(),
		summary:  summarize(adapter, deviceID),
	}
	return d, nil
}

// Accelerated reports whether the device dispatches to a GPU adapter.
func (d *Device) Accelerated() bool {
	return d != nil && d.Device != nil && d.Queue != nil
}

// Summary returns the adapter description. The host device reports itself
// as "cpu".
func (d *Device) Summary() AdapterSummary {
	if !d.Accelerated() {
		return AdapterSummary{Index: -1, Name: "cpu", Backend: "host", Type: "cpu"}
	}
	return d.summary
}

// Close releases the WebGPU handles. Safe to call twice and on the host
// device.
func (d *Device) Close() {
	if d == nil || d.closed {
		return
	}
	d.closed = true

	if d.Device != nil {
		d.Device.Release()
		d.Device = nil
		d.Queue = nil
	}
	if d.Instance != nil {
		d.Instance.Release()
		d.Instance = nil
	}
	d.Adapter = nil
}

// List enumerates the available adapters without opening any of them.
func List() ([]AdapterSummary, error) {
	inst := wgpu.CreateInstance(nil)
	if inst == nil {
		return nil, fmt.Errorf("failed to create WebGPU instance")
	}
	defer inst.Release()

	adapters := inst.EnumerateAdapters(nil)
	out := make([]AdapterSummary, 0, len(adapters))
	for i, a := range adapters {
		out = append(out, summarize(a, i))
	}
	return out, nil
}

func summarize(a *wgpu.Adapter, index int) AdapterSummary {
	info := a.GetInfo()
	return AdapterSummary{
		Index:    index,
		Name:     strings.TrimSpace(info.Name),
		Vendor:   strings.TrimSpace(info.VendorName),
		Backend:  info.BackendType.String(),
		Type:     info.AdapterType.String(),
		VendorID: fmt.Sprintf("0x%04x", info.VendorId),
		DeviceID: fmt.Sprintf("0x%04x", info.DeviceId),
		Driver:   strings.TrimSpace(info.DriverDescription),
	}
}
