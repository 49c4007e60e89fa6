package screen

import (
	"image"

	"golang.org/x/image/draw"
)

// Reference resolution templates are usually authored at.
const (
	ReferenceWidth  = 1920
	ReferenceHeight = 1080
)

// Scaled wraps a Source and rescales every frame to a fixed size, so
// templates cut at one resolution keep matching on another display.
type Scaled struct {
	Source        Source
	Width, Height int
}

// Capture grabs a frame from the wrapped source and rescales it.
func (s Scaled) Capture() (image.Image, error) {
	img, err := s.Source.Capture()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNoFrame
	}
	return ScaleTo(img, s.Width, s.Height), nil
}

// ScaleTo resamples img to w×h with a Catmull-Rom filter. An image that
// already has that size is returned unchanged.
func ScaleTo(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ScalePoint maps p from a from-sized frame to a to-sized frame.
func ScalePoint(p image.Point, from, to image.Point) image.Point {
	if from.X == 0 || from.Y == 0 {
		return p
	}
	return image.Pt(p.X*to.X/from.X, p.Y*to.Y/from.Y)
}

// ScaleRect maps r from a from-sized frame to a to-sized frame.
func ScaleRect(r image.Rectangle, from, to image.Point) image.Rectangle {
	return image.Rectangle{Min: ScalePoint(r.Min, from, to), Max: ScalePoint(r.Max, from, to)}
}
