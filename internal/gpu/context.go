// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tmatch"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Context owns the device and queue used for all GPU matching work.
type Context struct {
	instance    hal.Instance // nil when the device is shared
	device      hal.Device
	queue       hal.Queue
	adapterName string
	external    bool // device and queue are owned by someone else
}

// NewContext acquires a compute-capable device through the Vulkan backend.
// Errors wrap tmatch.ErrNoDevice.
func NewContext() (*Context, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", tmatch.ErrNoDevice)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", tmatch.ErrNoDevice, err)
	}
	ctx, err := NewContextFromInstance(instance)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return ctx, nil
}

// NewContextFromInstance selects an adapter from instance, preferring
// discrete then integrated GPUs, and opens a device on it. The returned
// Context takes ownership of instance.
func NewContextFromInstance(instance hal.Instance) (*Context, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no GPU adapters found", tmatch.ErrNoDevice)
	}

	rank := func(a *hal.ExposedAdapter) int {
		switch a.Info.DeviceType {
		case gputypes.DeviceTypeDiscreteGPU:
			return 2
		case gputypes.DeviceTypeIntegratedGPU:
			return 1
		}
		return 0
	}
	selected := &adapters[0]
	for i := range adapters {
		if rank(&adapters[i]) > rank(selected) {
			selected = &adapters[i]
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("%w: open device %q: %v", tmatch.ErrNoDevice, selected.Info.Name, err)
	}

	slogger().Info("gpu: adapter selected", "name", selected.Info.Name, "type", selected.Info.DeviceType)
	return &Context{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}, nil
}

// NewContextWithDevice wraps a device and queue owned by the caller.
// Close leaves them alive.
func NewContextWithDevice(device hal.Device, queue hal.Queue) (*Context, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", tmatch.ErrNoDevice)
	}
	return &Context{device: device, queue: queue, adapterName: "shared", external: true}, nil
}

// NewContextFromProvider shares the device of an external provider such as
// a gogpu window. The provider must also expose HalDevice() and HalQueue()
// returning hal.Device and hal.Queue.
func NewContextFromProvider(provider gpucontext.DeviceProvider) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, errors.New("gpu: nil device provider")
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("gpu: provider HalQueue is not hal.Queue")
	}
	return NewContextWithDevice(device, queue)
}

// AdapterName returns the name of the selected adapter, or "shared".
func (c *Context) AdapterName() string { return c.adapterName }

// Device returns the underlying device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the underlying queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// CreateShaderModule compiles a shader module from WGSL. With spirv the
// source is first compiled to SPIR-V by naga and handed to the driver in
// that form.
func (c *Context) CreateShaderModule(label, wgsl string, spirv bool) (hal.ShaderModule, error) {
	source := hal.ShaderSource{WGSL: wgsl}
	if spirv {
		words, err := compileSPIRV(wgsl)
		if err != nil {
			return nil, err
		}
		source = hal.ShaderSource{SPIRV: words}
	}
	module, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: source})
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", label, err)
	}
	return module, nil
}

// Close destroys the device and instance unless they are shared.
func (c *Context) Close() {
	if c.external {
		c.device, c.queue = nil, nil
		return
	}
	if c.device != nil {
		c.device.Destroy()
		c.device, c.queue = nil, nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}
