// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tmatch"
)

// BackendName is the name reported by Matcher.
const BackendName = "gpu"

// DefaultReadbackTimeout bounds the wait for a dispatch to complete.
const DefaultReadbackTimeout = 10 * time.Second

// uniformSize is the byte size of the Uniforms struct in the shader.
const uniformSize = 16

// Config configures a Matcher.
type Config struct {
	// ReadbackTimeout bounds the fence wait. Zero means DefaultReadbackTimeout.
	ReadbackTimeout time.Duration

	// ZeroFillOnReadbackFailure returns a zero-filled surface instead of
	// tmatch.ErrReadback when the result cannot be read back. A zero surface
	// can look like a perfect match for the difference methods; the failure
	// is logged at Warn level.
	ZeroFillOnReadbackFailure bool

	// SPIRV compiles the shader with naga and passes SPIR-V to the driver.
	SPIRV bool

	// Logger receives this Matcher's logs. Nil means the package logger.
	Logger *slog.Logger
}

// Stats counts GPU work done by a Matcher.
type Stats struct {
	BufferAllocations uint64
	BindGroupBuilds   uint64
	UniformWrites     uint64
	Dispatches        uint64
	ReadbackFailures  uint64
}

// uniforms mirrors the Uniforms struct in template_matching.wgsl.
type uniforms struct {
	imageWidth, imageHeight       uint32
	templateWidth, templateHeight uint32
}

func (u uniforms) bytes() []byte {
	b := make([]byte, uniformSize)
	binary.LittleEndian.PutUint32(b[0:], u.imageWidth)
	binary.LittleEndian.PutUint32(b[4:], u.imageHeight)
	binary.LittleEndian.PutUint32(b[8:], u.templateWidth)
	binary.LittleEndian.PutUint32(b[12:], u.templateHeight)
	return b
}

// sizedBuffer is a persistent GPU buffer that is recreated only when the
// required byte size changes.
type sizedBuffer struct {
	label string
	usage gputypes.BufferUsage
	buf   hal.Buffer
	size  uint64
}

// ensure makes b hold a buffer of exactly size bytes. It reports whether a
// new buffer was created.
func (b *sizedBuffer) ensure(device hal.Device, size uint64, log *slog.Logger) (bool, error) {
	if b.buf != nil && b.size == size {
		return false, nil
	}
	b.destroy(device)
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: b.label, Size: size, Usage: b.usage})
	if err != nil {
		return false, fmt.Errorf("create %s buffer (%d bytes): %w", b.label, size, err)
	}
	b.buf, b.size = buf, size
	log.Debug("gpu: buffer allocated", "buffer", b.label, "bytes", size)
	return true, nil
}

func (b *sizedBuffer) destroy(device hal.Device) {
	if b.buf != nil {
		device.DestroyBuffer(b.buf)
		b.buf, b.size = nil, 0
	}
}

// Matcher computes correlation surfaces with compute shaders. It implements
// tmatch.Backend.
//
// One pipeline per method is built at construction. The image, template,
// result and staging buffers persist across calls and are reallocated only
// when their byte size changes; the bind group is rebuilt only then.
type Matcher struct {
	ctx *Context
	cfg Config

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  [tmatch.MethodCount]hal.ComputePipeline

	image    sizedBuffer
	template sizedBuffer
	result   sizedBuffer
	staging  sizedBuffer
	uniform  hal.Buffer

	bindGroup    hal.BindGroup
	lastUniforms uniforms
	uniformsSet  bool

	stats  Stats
	closed bool
}

var _ tmatch.Backend = (*Matcher)(nil)

// NewMatcher builds the pipelines on ctx. The Matcher takes ownership of
// ctx and closes it in Close.
func NewMatcher(ctx *Context, cfg Config) (*Matcher, error) {
	if cfg.ReadbackTimeout <= 0 {
		cfg.ReadbackTimeout = DefaultReadbackTimeout
	}
	m := &Matcher{
		ctx: ctx,
		cfg: cfg,
		image: sizedBuffer{
			label: "tmatch_image",
			usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		},
		template: sizedBuffer{
			label: "tmatch_template",
			usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		},
		result: sizedBuffer{
			label: "tmatch_result",
			usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		},
		staging: sizedBuffer{
			label: "tmatch_staging",
			usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		},
	}
	if err := m.createPipelines(); err != nil {
		m.destroyResources()
		return nil, err
	}
	return m, nil
}

// createPipelines builds the shader module, layouts, the uniform buffer and
// one compute pipeline per method.
func (m *Matcher) createPipelines() error {
	device := m.ctx.device

	shader, err := m.ctx.CreateShaderModule("tmatch_template_matching", templateMatchingShaderSource, m.cfg.SPIRV)
	if err != nil {
		return err
	}
	m.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tmatch_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	m.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "tmatch_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{m.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	m.pipeLayout = pipeLayout

	for method, entry := range entryPoints {
		pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   "tmatch_" + entry,
			Layout:  m.pipeLayout,
			Compute: hal.ComputeState{Module: m.shader, EntryPoint: entry},
		})
		if err != nil {
			return fmt.Errorf("create %s pipeline: %w", tmatch.Method(method), err)
		}
		m.pipelines[method] = pipeline
		m.log().Debug("gpu: pipeline created", "method", tmatch.Method(method), "entry", entry)
	}

	uniform, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tmatch_uniforms", Size: uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	m.uniform = uniform
	return nil
}

// Name implements tmatch.Backend.
func (m *Matcher) Name() string { return BackendName }

// AdapterName returns the name of the GPU adapter in use.
func (m *Matcher) AdapterName() string { return m.ctx.AdapterName() }

// Stats returns a snapshot of the GPU counters.
func (m *Matcher) Stats() Stats { return m.stats }

// Correlate implements tmatch.Backend.
func (m *Matcher) Correlate(img, tmpl *tmatch.Image, method tmatch.Method) (*tmatch.Image, error) {
	if m.closed {
		return nil, tmatch.ErrEngineClosed
	}
	if img.Empty() || tmpl.Empty() {
		return nil, tmatch.ErrEmptyImage
	}
	if err := errors.Join(img.CheckPix(), tmpl.CheckPix()); err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, tmatch.ErrInvalidMethod
	}
	if tmpl.Width > img.Width || tmpl.Height > img.Height {
		return nil, &tmatch.DimensionError{
			ImageWidth: img.Width, ImageHeight: img.Height,
			TemplateWidth: tmpl.Width, TemplateHeight: tmpl.Height,
		}
	}

	rw, rh := img.Width-tmpl.Width+1, img.Height-tmpl.Height+1
	resultSize := uint64(rw) * uint64(rh) * 4

	changed, err := m.prepareBuffers(img, tmpl, resultSize)
	if err != nil {
		return nil, err
	}

	u := uniforms{
		imageWidth: uint32(img.Width), imageHeight: uint32(img.Height), //nolint:gosec // dimensions always fit uint32
		templateWidth: uint32(tmpl.Width), templateHeight: uint32(tmpl.Height), //nolint:gosec // dimensions always fit uint32
	}
	// Equal byte sizes can hide a shape change, so compare the values too.
	if changed || !m.uniformsSet || u != m.lastUniforms {
		m.ctx.queue.WriteBuffer(m.uniform, 0, u.bytes())
		m.lastUniforms, m.uniformsSet = u, true
		m.stats.UniformWrites++
	}

	if changed || m.bindGroup == nil {
		if err := m.rebuildBindGroup(); err != nil {
			return nil, err
		}
	}

	readback, err := m.dispatch(method, uint32(rw), uint32(rh), resultSize) //nolint:gosec // dimensions always fit uint32
	if err != nil {
		var rerr *readbackError
		if errors.As(err, &rerr) {
			return m.readbackFailed(rw, rh, rerr.err)
		}
		return nil, fmt.Errorf("gpu: %w", err)
	}
	return decodeSurface(rw, rh, readback), nil
}

// prepareBuffers sizes the four persistent buffers and uploads the inputs.
// It reports whether any buffer was reallocated.
func (m *Matcher) prepareBuffers(img, tmpl *tmatch.Image, resultSize uint64) (bool, error) {
	device := m.ctx.device
	imageBytes := encodeFloats(img.Pix)
	templateBytes := encodeFloats(tmpl.Pix)

	changed := false
	for _, s := range []struct {
		buf  *sizedBuffer
		size uint64
	}{
		{&m.image, uint64(len(imageBytes))},
		{&m.template, uint64(len(templateBytes))},
		{&m.result, resultSize},
		{&m.staging, resultSize},
	} {
		created, err := s.buf.ensure(device, s.size, m.log())
		if err != nil {
			return false, err
		}
		if created {
			m.stats.BufferAllocations++
			changed = true
		}
	}

	m.ctx.queue.WriteBuffer(m.image.buf, 0, imageBytes)
	m.ctx.queue.WriteBuffer(m.template.buf, 0, templateBytes)
	return changed, nil
}

func (m *Matcher) rebuildBindGroup() error {
	device := m.ctx.device
	if m.bindGroup != nil {
		device.DestroyBindGroup(m.bindGroup)
		m.bindGroup = nil
	}
	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "tmatch_bind", Layout: m.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: m.image.buf.NativeHandle(), Offset: 0, Size: m.image.size}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: m.template.buf.NativeHandle(), Offset: 0, Size: m.template.size}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: m.result.buf.NativeHandle(), Offset: 0, Size: m.result.size}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: m.uniform.NativeHandle(), Offset: 0, Size: uniformSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	m.bindGroup = bg
	m.stats.BindGroupBuilds++
	m.log().Debug("gpu: bind group rebuilt",
		"image_bytes", m.image.size, "template_bytes", m.template.size, "result_bytes", m.result.size)
	return nil
}

// dispatch records one compute pass plus the copy into the staging buffer,
// submits it and reads the staging buffer back.
func (m *Matcher) dispatch(method tmatch.Method, rw, rh uint32, resultSize uint64) ([]byte, error) {
	device, queue := m.ctx.device, m.ctx.queue

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "tmatch_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("tmatch_match"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "tmatch_pass"})
	pass.SetPipeline(m.pipelines[method])
	pass.SetBindGroup(0, m.bindGroup, nil)
	pass.Dispatch((rw+workgroupSize-1)/workgroupSize, (rh+workgroupSize-1)/workgroupSize, 1)
	pass.End()

	encoder.CopyBufferToBuffer(m.result.buf, m.staging.buf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: resultSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	m.stats.Dispatches++
	m.log().Debug("gpu: dispatched", "method", method, "result_w", rw, "result_h", rh)

	ok, err := device.Wait(fence, 1, m.cfg.ReadbackTimeout)
	if err != nil {
		return nil, &readbackError{fmt.Errorf("wait for GPU: %w", err)}
	}
	if !ok {
		return nil, &readbackError{fmt.Errorf("wait for GPU: timed out after %v", m.cfg.ReadbackTimeout)}
	}

	readback := make([]byte, resultSize)
	if err := queue.ReadBuffer(m.staging.buf, 0, readback); err != nil {
		return nil, &readbackError{fmt.Errorf("read staging buffer: %w", err)}
	}
	return readback, nil
}

// log returns the configured logger, falling back to the package logger.
func (m *Matcher) log() *slog.Logger {
	if m.cfg.Logger != nil {
		return m.cfg.Logger
	}
	return slogger()
}

// readbackError marks failures after a successful submit: the fence wait
// and the staging read. Only these go through the readback policy.
type readbackError struct{ err error }

func (e *readbackError) Error() string { return e.err.Error() }
func (e *readbackError) Unwrap() error { return e.err }

// readbackFailed applies the configured readback failure policy.
func (m *Matcher) readbackFailed(rw, rh int, cause error) (*tmatch.Image, error) {
	m.stats.ReadbackFailures++
	if m.cfg.ZeroFillOnReadbackFailure {
		m.log().Warn("gpu: readback failed, returning zero-filled surface",
			"width", rw, "height", rh, "err", cause)
		return tmatch.NewImage(rw, rh), nil
	}
	return nil, fmt.Errorf("%w: %w", tmatch.ErrReadback, cause)
}

// Close releases all GPU resources and the context. Close is safe to call
// more than once.
func (m *Matcher) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.destroyResources()
	m.ctx.Close()
}

// destroyResources releases everything created by NewMatcher and later
// calls, tolerating partial initialization.
func (m *Matcher) destroyResources() {
	device := m.ctx.device
	if device == nil {
		return
	}
	if m.bindGroup != nil {
		device.DestroyBindGroup(m.bindGroup)
		m.bindGroup = nil
	}
	for _, b := range []*sizedBuffer{&m.image, &m.template, &m.result, &m.staging} {
		b.destroy(device)
	}
	if m.uniform != nil {
		device.DestroyBuffer(m.uniform)
		m.uniform = nil
	}
	for i, p := range m.pipelines {
		if p != nil {
			device.DestroyComputePipeline(p)
			m.pipelines[i] = nil
		}
	}
	if m.pipeLayout != nil {
		device.DestroyPipelineLayout(m.pipeLayout)
		m.pipeLayout = nil
	}
	if m.bindLayout != nil {
		device.DestroyBindGroupLayout(m.bindLayout)
		m.bindLayout = nil
	}
	if m.shader != nil {
		device.DestroyShaderModule(m.shader)
		m.shader = nil
	}
	m.uniformsSet = false
}

func encodeFloats(pix []float32) []byte {
	b := make([]byte, len(pix)*4)
	for i, v := range pix {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeSurface(w, h int, b []byte) *tmatch.Image {
	out := tmatch.NewImage(w, h)
	for i := range out.Pix {
		out.Pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
