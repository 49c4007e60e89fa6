// Package screen supplies images to match against and acts on the results.
//
// A Source produces frames, either from disk or from the live display.
// Clicker is the boundary to whatever input-injection mechanism the caller
// uses; the package ships helpers that turn matches into clicks.
package screen

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/vova616/screenshot"

	"github.com/gogpu/tmatch"
)

// ErrNoFrame is returned when a source produced no image.
var ErrNoFrame = errors.New("screen: no frame captured")

// Source captures frames.
type Source interface {
	Capture() (image.Image, error)
}

// Func adapts a function to the Source interface.
type Func func() (image.Image, error)

// Capture calls f.
func (f Func) Capture() (image.Image, error) { return f() }

// FileSource reads a frame from an image file on every capture.
type FileSource struct {
	Path string
}

// Capture decodes the file at s.Path.
func (s FileSource) Capture() (image.Image, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("screen: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("screen: decode %s: %w", s.Path, err)
	}
	return img, nil
}

// DisplaySource captures the primary display, or only Rect when it is not
// empty.
type DisplaySource struct {
	Rect image.Rectangle
}

// Capture grabs the screen.
func (s DisplaySource) Capture() (image.Image, error) {
	var (
		img *image.RGBA
		err error
	)
	if s.Rect.Empty() {
		img, err = screenshot.CaptureScreen()
	} else {
		img, err = screenshot.CaptureRect(s.Rect)
	}
	if err != nil {
		return nil, fmt.Errorf("screen: capture: %w", err)
	}
	if img == nil {
		return nil, ErrNoFrame
	}
	return img, nil
}

// DisplayBounds reports the size of the primary display.
func DisplayBounds() (image.Rectangle, error) {
	r, err := screenshot.ScreenRect()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("screen: %w", err)
	}
	return r, nil
}

// Luma captures one frame from src and converts it to a matching image.
func Luma(src Source) (*tmatch.Image, error) {
	img, err := src.Capture()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNoFrame
	}
	return tmatch.FromImage(img), nil
}
