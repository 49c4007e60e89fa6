package tmatch

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Image is a single-channel float32 luma buffer in row-major order.
// Values are unconstrained; images produced by FromImage hold luma in [0, 1].
//
// Image implements image.Image as 16-bit gray, clamping values to [0, 1].
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// NewImage allocates a zero-filled image.
func NewImage(width, height int) *Image {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// NewImageFromPix wraps pix without copying. It returns ErrPixLength when
// len(pix) != width*height.
func NewImageFromPix(width, height int, pix []float32) (*Image, error) {
	if width < 0 || height < 0 || len(pix) != width*height {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d",
			ErrPixLength, width, height, width*height, len(pix))
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts img to luma using Rec. 709 weights.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < out.Height; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			row := g.Pix[off : off+out.Width]
			dst := out.Pix[y*out.Width : (y+1)*out.Width]
			for x, v := range row {
				dst[x] = float32(v) / 255
			}
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			l := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bl)
			out.Pix[y*out.Width+x] = float32(l / 0xffff)
		}
	}
	return out
}

// Empty reports whether the image has no pixels.
func (m *Image) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0
}

// CheckPix returns ErrPixLength when len(m.Pix) does not match the declared
// dimensions, as with a hand-built Image literal.
func (m *Image) CheckPix() error {
	if len(m.Pix) != m.Width*m.Height {
		return fmt.Errorf("%w: %dx%d needs %d values, got %d",
			ErrPixLength, m.Width, m.Height, m.Width*m.Height, len(m.Pix))
	}
	return nil
}

// Value returns the pixel at (x, y). Out-of-range coordinates return 0.
func (m *Image) Value(x, y int) float32 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// SetValue stores v at (x, y). Out-of-range coordinates are ignored.
func (m *Image) SetValue(x, y int, v float32) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := NewImage(m.Width, m.Height)
	copy(out.Pix, m.Pix)
	return out
}

// Pad returns a copy extended by dx columns on the right and dy rows at the
// bottom. The new cells are zero.
func (m *Image) Pad(dx, dy int) *Image {
	if dx < 0 {
		dx = 0
	}
	if dy < 0 {
		dy = 0
	}
	out := NewImage(m.Width+dx, m.Height+dy)
	for y := range m.Height {
		copy(out.Pix[y*out.Width:y*out.Width+m.Width], m.Pix[y*m.Width:(y+1)*m.Width])
	}
	return out
}

// Sub returns m minus other over m's bounds. Cells of m outside other are
// left unchanged.
func (m *Image) Sub(other *Image) *Image {
	out := m.Clone()
	w := min(m.Width, other.Width)
	h := min(m.Height, other.Height)
	for y := range h {
		dst := out.Pix[y*out.Width : y*out.Width+w]
		src := other.Pix[y*other.Width : y*other.Width+w]
		for x := range dst {
			dst[x] -= src[x]
		}
	}
	return out
}

// SubImage returns a copy of the pixels inside r, clipped to the image.
func (m *Image) SubImage(r image.Rectangle) *Image {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	out := NewImage(r.Dx(), r.Dy())
	for y := range out.Height {
		src := (r.Min.Y+y)*m.Width + r.Min.X
		copy(out.Pix[y*out.Width:(y+1)*out.Width], m.Pix[src:src+out.Width])
	}
	return out
}

// MinMax returns the smallest and largest finite values. An image with no
// finite values returns (0, 0).
func (m *Image) MinMax() (lo, hi float32) {
	first := true
	for _, v := range m.Pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// ToGray converts the image to 16-bit gray. With normalize the value range is
// stretched to [0, 1] first; otherwise values are clamped.
func (m *Image) ToGray(normalize bool) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	lo, hi := float32(0), float32(1)
	if normalize {
		lo, hi = m.MinMax()
	}
	scale := float32(0)
	if hi > lo {
		scale = 1 / (hi - lo)
	}
	for i, v := range m.Pix {
		out.SetGray16(i%m.Width, i/m.Width, color.Gray16{Y: toGray16((v - lo) * scale)})
	}
	return out
}

func toGray16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model {
	return color.Gray16Model
}

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	return color.Gray16{Y: toGray16(m.Value(x, y))}
}
