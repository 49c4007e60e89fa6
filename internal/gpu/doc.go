// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package gpu implements the GPU matching backend.
//
// This is an internal package used by tmatch through the public gpu/
// package. It runs the correlation kernels as compute shaders via the
// gogpu/wgpu Pure Go WebGPU implementation (zero CGO) on Vulkan.
//
// # Architecture Overview
//
//	Context (instance, device, queue, shader module)
//	   |
//	Matcher (pipelines, persistent buffers, bind group)
//	   |
//	image/template upload -> dispatch 8x8 workgroups -> copy to staging -> readback
//
// Key components:
//
//   - Context: device acquisition, shared devices, WGSL/SPIR-V shader modules
//   - Matcher: one compute pipeline per matching method in a lookup table,
//     buffers that are reallocated only when their byte size changes
//
// # Buffer Reuse
//
// Matching the same image and template sizes repeatedly performs no GPU
// allocation: buffers are overwritten in place and the bind group is kept.
// A size change reallocates only the affected buffers and rebuilds the bind
// group once.
//
// # Thread Safety
//
// Matcher is not safe for concurrent use. tmatch.Engine serializes calls.
package gpu
