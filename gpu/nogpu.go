//go:build nogpu

// Package gpu is empty when built with the nogpu tag; no backend is
// registered and tmatch falls back to the software backend.
package gpu
