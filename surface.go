package tmatch

import (
	"fmt"
	"image/png"
	"io"
	"os"
)

// EncodeSurfacePNG writes img as a 16-bit grayscale PNG. With normalize the
// value range is stretched to full scale; a constant surface encodes as all
// black. Without normalize values are clamped to [0, 1].
func EncodeSurfacePNG(w io.Writer, img *Image, normalize bool) error {
	if img.Empty() {
		return ErrEmptyImage
	}
	return png.Encode(w, img.ToGray(normalize))
}

// SaveSurfacePNG writes img to path with EncodeSurfacePNG. It is meant for
// inspecting correlation surfaces while tuning thresholds.
func SaveSurfacePNG(path string, img *Image, normalize bool) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := EncodeSurfacePNG(f, img, normalize); err != nil {
		_ = f.Close()
		return fmt.Errorf("tmatch: encode %s: %w", path, err)
	}
	return f.Close()
}
