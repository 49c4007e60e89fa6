// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package gpu provides the GPU matching backend.
//
// The backend runs the six correlation kernels as Vulkan compute shaders via
// gogpu/wgpu and keeps its buffers alive between calls, reallocating only
// when the image or template byte size changes.
//
// Importing the package also registers the backend under the name "gpu" for
// tmatch.OpenBackend:
//
//	import _ "github.com/gogpu/tmatch/gpu"
//
// Usage:
//
//	engine, err := gpu.NewEngine(gpu.WithReadbackTimeout(2 * time.Second))
//	if errors.Is(err, tmatch.ErrNoDevice) {
//	    engine = tmatch.NewEngine(tmatch.NewSoftwareBackend(0))
//	}
//	defer engine.Close()
package gpu

import (
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tmatch"
	gpuimpl "github.com/gogpu/tmatch/internal/gpu"
)

// Name is the registered backend name.
const Name = gpuimpl.BackendName

// Stats counts GPU work done by a backend.
type Stats = gpuimpl.Stats

// Option configures the GPU backend.
type Option func(*options)

type options struct {
	cfg      gpuimpl.Config
	provider gpucontext.DeviceProvider
	device   hal.Device
	queue    hal.Queue
	logger   *slog.Logger
}

// WithReadbackTimeout bounds the wait for each dispatch. The default is
// ten seconds.
func WithReadbackTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.ReadbackTimeout = d
	}
}

// WithZeroFillOnReadbackFailure returns a zero-filled surface instead of
// tmatch.ErrReadback when a result cannot be read back. Off by default: a
// zero surface is indistinguishable from a perfect match under the
// difference methods.
func WithZeroFillOnReadbackFailure() Option {
	return func(o *options) {
		o.cfg.ZeroFillOnReadbackFailure = true
	}
}

// WithSPIRV compiles the shader to SPIR-V with naga before handing it to the
// driver.
func WithSPIRV() Option {
	return func(o *options) {
		o.cfg.SPIRV = true
	}
}

// WithDeviceProvider shares the device of an external provider, such as a
// gogpu application, instead of opening a new one. The provider must expose
// HalDevice() and HalQueue().
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithDevice uses a caller-owned device and queue.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(o *options) {
		o.device, o.queue = device, queue
	}
}

// WithLogger sets the logger of the backend being created. Other backends
// keep logging through tmatch.Logger(), the default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewBackend creates a GPU backend. Failure to acquire a device returns an
// error wrapping tmatch.ErrNoDevice.
func NewBackend(opts ...Option) (tmatch.Backend, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg.Logger = o.logger

	var (
		ctx *gpuimpl.Context
		err error
	)
	switch {
	case o.provider != nil:
		ctx, err = gpuimpl.NewContextFromProvider(o.provider)
	case o.device != nil || o.queue != nil:
		ctx, err = gpuimpl.NewContextWithDevice(o.device, o.queue)
	default:
		ctx, err = gpuimpl.NewContext()
	}
	if err != nil {
		return nil, err
	}

	m, err := gpuimpl.NewMatcher(ctx, o.cfg)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	log := o.logger
	if log == nil {
		log = tmatch.Logger()
	}
	log.Info("gpu: matching backend ready", "adapter", m.AdapterName())
	return m, nil
}

// NewEngine creates a GPU backend wrapped in a tmatch.Engine.
func NewEngine(opts ...Option) (*tmatch.Engine, error) {
	b, err := NewBackend(opts...)
	if err != nil {
		return nil, err
	}
	return tmatch.NewEngine(b), nil
}

// BackendStats returns the GPU counters of b. It reports false when b is not
// a GPU backend.
func BackendStats(b tmatch.Backend) (Stats, bool) {
	m, ok := b.(*gpuimpl.Matcher)
	if !ok {
		return Stats{}, false
	}
	return m.Stats(), true
}

func init() {
	if err := tmatch.RegisterBackend(Name, func() (tmatch.Backend, error) {
		return NewBackend()
	}); err != nil {
		tmatch.Logger().Warn("gpu: backend registration failed", "err", err)
	}
}
