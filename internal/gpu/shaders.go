// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/tmatch"
)

// templateMatchingShaderSource holds all six correlation kernels.
//
//go:embed shaders/template_matching.wgsl
var templateMatchingShaderSource string

// entryPoints maps each method to its kernel in templateMatchingShaderSource.
var entryPoints = [tmatch.MethodCount]string{
	tmatch.SumOfSquaredDifference:       "main_sqdiff",
	tmatch.SumOfSquaredDifferenceNormed: "main_sqdiff_normed",
	tmatch.CrossCorrelation:             "main_ccorr",
	tmatch.CrossCorrelationNormed:       "main_ccorr_normed",
	tmatch.CorrelationCoefficient:       "main_ccoeff",
	tmatch.CorrelationCoefficientNormed: "main_ccoeff_normed",
}

// workgroupSize is the edge length of the square workgroup declared in the
// shader.
const workgroupSize = 8

// compileSPIRV compiles WGSL to little-endian SPIR-V words with naga.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
