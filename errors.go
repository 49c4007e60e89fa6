package tmatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned when no compute-capable GPU device can be
	// acquired. Callers should treat it as fatal for the GPU backend.
	ErrNoDevice = errors.New("tmatch: no compute-capable device")

	// ErrDimension is matched by every *DimensionError.
	ErrDimension = errors.New("tmatch: template larger than image")

	// ErrReadback is returned when the correlation surface could not be read
	// back from the device. It is the only error that is safe to retry.
	ErrReadback = errors.New("tmatch: surface readback failed")

	// ErrConfigurationMismatch is returned when a threshold cannot be
	// meaningful for the chosen method.
	ErrConfigurationMismatch = errors.New("tmatch: threshold does not fit method")

	// ErrEmptyImage is returned for zero-sized images or templates.
	ErrEmptyImage = errors.New("tmatch: empty image")

	// ErrInvalidMethod is returned for out-of-range Method values.
	ErrInvalidMethod = errors.New("tmatch: invalid matching method")

	// ErrEngineClosed is returned by an Engine after Close.
	ErrEngineClosed = errors.New("tmatch: engine closed")

	// ErrPixLength is returned when a pixel slice does not match the
	// declared dimensions.
	ErrPixLength = errors.New("tmatch: pixel buffer length mismatch")
)

// DimensionError reports a template that does not fit inside the image it is
// matched against.
type DimensionError struct {
	ImageWidth, ImageHeight       int
	TemplateWidth, TemplateHeight int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("tmatch: template %dx%d larger than image %dx%d",
		e.TemplateWidth, e.TemplateHeight, e.ImageWidth, e.ImageHeight)
}

// Is makes errors.Is(err, ErrDimension) report true.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimension
}

// checkFits returns a *DimensionError if tmpl does not fit inside img.
func checkFits(img, tmpl *Image) error {
	if tmpl.Width > img.Width || tmpl.Height > img.Height {
		return &DimensionError{
			ImageWidth:     img.Width,
			ImageHeight:    img.Height,
			TemplateWidth:  tmpl.Width,
			TemplateHeight: tmpl.Height,
		}
	}
	return nil
}

// IsRetryable reports whether err is a transient device error that a caller
// may retry. Retry policy belongs to the caller; the engine never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrReadback)
}
