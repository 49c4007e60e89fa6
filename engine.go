package tmatch

import (
	"fmt"
	"sync"
)

// Engine is the shared matching handle. It owns one Backend and serializes
// every call into it with a single mutex held for the whole match, including
// the pre-pass, the dispatch and the blocking readback. At most one
// correlation runs on the backend at any time.
//
// Construct one Engine at startup and pass the pointer to every component
// that needs matching. Engine is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	closed  bool
	stats   EngineStats
}

// EngineStats counts work done by an Engine.
type EngineStats struct {
	// Calls is the number of successful MatchTemplate calls.
	Calls uint64
	// Correlations is the number of backend correlations, pre-passes included.
	Correlations uint64
	// PrePasses is the number of mean-subtraction pre-passes run.
	PrePasses uint64
}

// NewEngine wraps backend in a serialized handle. The Engine takes ownership
// and closes the backend in Close.
func NewEngine(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// BackendName returns the name of the wrapped backend.
func (e *Engine) BackendName() string {
	return e.backend.Name()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// MatchTemplate computes the correlation surface of tmpl over img.
//
// Without padding the surface is (iw−tw+1)×(ih−th+1) and tmpl must fit
// inside img. With padding img is first zero-extended by (tw−1, th−1) on the
// right and bottom, so the surface has img's own size and includes partial
// overlaps at those edges.
//
// The correlation coefficient methods subtract the local mean of img and the
// mean of tmpl before correlating.
func (e *Engine) MatchTemplate(img, tmpl *Image, method Method, padding bool) (*Image, error) {
	if img.Empty() || tmpl.Empty() {
		return nil, ErrEmptyImage
	}
	if err := img.CheckPix(); err != nil {
		return nil, fmt.Errorf("tmatch: image: %w", err)
	}
	if err := tmpl.CheckPix(); err != nil {
		return nil, fmt.Errorf("tmatch: template: %w", err)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMethod, uint8(method))
	}
	if !padding {
		if err := checkFits(img, tmpl); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	if method.NeedsMeanSubtraction() {
		var err error
		img, tmpl, err = e.subtractMeans(img, tmpl)
		if err != nil {
			return nil, err
		}
		e.stats.PrePasses++
	}

	surface, err := e.correlate(img, tmpl, method, padding)
	if err != nil {
		return nil, err
	}
	e.stats.Calls++
	Logger().Debug("tmatch: match", "backend", e.backend.Name(), "method", method.String(),
		"surface_w", surface.Width, "surface_h", surface.Height)
	return surface, nil
}

// subtractMeans runs the mean-subtraction pre-pass as two padded cross
// correlations against a uniform averaging kernel. Caller must hold e.mu.
func (e *Engine) subtractMeans(img, tmpl *Image) (*Image, *Image, error) {
	kernel := NewImage(tmpl.Width, tmpl.Height)
	w := 1 / float32(tmpl.Width*tmpl.Height)
	for i := range kernel.Pix {
		kernel.Pix[i] = w
	}

	avgImg, err := e.correlate(img, kernel, CrossCorrelation, true)
	if err != nil {
		return nil, nil, fmt.Errorf("tmatch: image mean pre-pass: %w", err)
	}
	avgTmpl, err := e.correlate(tmpl, kernel, CrossCorrelation, true)
	if err != nil {
		return nil, nil, fmt.Errorf("tmatch: template mean pre-pass: %w", err)
	}
	return img.Sub(avgImg), tmpl.Sub(avgTmpl), nil
}

// correlate pads when requested and runs one backend correlation.
// Caller must hold e.mu.
func (e *Engine) correlate(img, tmpl *Image, method Method, padding bool) (*Image, error) {
	if padding {
		img = img.Pad(tmpl.Width-1, tmpl.Height-1)
	}
	if err := checkFits(img, tmpl); err != nil {
		return nil, err
	}
	surface, err := e.backend.Correlate(img, tmpl, method)
	if err != nil {
		return nil, err
	}
	e.stats.Correlations++

	rw, rh := img.Width-tmpl.Width+1, img.Height-tmpl.Height+1
	if surface == nil || surface.Width != rw || surface.Height != rh || len(surface.Pix) != rw*rh {
		return nil, fmt.Errorf("tmatch: backend %s returned a surface that is not %dx%d", e.backend.Name(), rw, rh)
	}
	return surface, nil
}

// Close closes the backend. Later calls to MatchTemplate return
// ErrEngineClosed. Close is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.backend.Close()
	Logger().Debug("tmatch: engine closed", "backend", e.backend.Name())
	return nil
}
