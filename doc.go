// Package tmatch locates template images inside screenshots.
//
// # Overview
//
// tmatch computes a correlation surface between a single-channel float32
// image and a smaller template under one of six matching methods, then
// extracts discrete matches from that surface. It is the recognition core of
// screen automation tools: a screen source supplies luma screenshots, a
// template source supplies reference fragments, and consumers turn the
// returned rectangles into clicks.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/tmatch"
//	    "github.com/gogpu/tmatch/gpu"
//	)
//
//	engine, err := gpu.NewEngine()
//	if err != nil {
//	    // No compute-capable device. Fall back to the CPU.
//	    engine = tmatch.NewEngine(tmatch.NewSoftwareBackend(0))
//	}
//	defer engine.Close()
//
//	res, err := tmatch.NewSingleMatcher(engine).MatchTemplate(screen, tmpl, tmatch.DefaultMatcherOptions())
//	if err == nil && res.Match != nil {
//	    fmt.Println("found at", res.Match.Rect())
//	}
//
// # Methods
//
// SumOfSquaredDifference and its normed variant are lower-is-better.
// CrossCorrelation, CorrelationCoefficient and their normed variants are
// higher-is-better. The correlation coefficient methods subtract the local
// mean of the image and the template before correlating.
//
// # Concurrency
//
// An [Engine] serializes every match call with a single mutex, so at most one
// GPU dispatch is in flight per engine. Construct one engine at startup and
// share the pointer.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Image, Method, MatcherOptions, Engine, matchers
//   - Backends: software (this package), gpu (gpu/, Vulkan compute via gogpu/wgpu)
//   - Sources: resource (template loading), screen (screenshots and clicks)
package tmatch
