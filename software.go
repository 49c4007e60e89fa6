package tmatch

import (
	"errors"
	"math"

	"github.com/gogpu/tmatch/internal/parallel"
)

// SoftwareBackendName is the registered name of the CPU backend.
const SoftwareBackendName = "software"

// denomEpsilon is the normalization divisor below which a window is
// considered to carry no signal.
const denomEpsilon = 1e-12

// SoftwareBackend computes correlation surfaces on the CPU.
//
// It evaluates the same per-method formulas as the GPU shader, splitting the
// output rows into bands that run on a work-stealing worker pool. It is the
// fallback when no GPU is available and the reference for testing.
type SoftwareBackend struct {
	pool *parallel.WorkerPool
}

// NewSoftwareBackend creates a CPU backend. If workers is 0 or negative,
// GOMAXPROCS is used.
func NewSoftwareBackend(workers int) *SoftwareBackend {
	return &SoftwareBackend{pool: parallel.NewWorkerPool(workers)}
}

// Name implements Backend.
func (b *SoftwareBackend) Name() string { return SoftwareBackendName }

// Workers returns the size of the worker pool.
func (b *SoftwareBackend) Workers() int { return b.pool.Workers() }

// Close implements Backend.
func (b *SoftwareBackend) Close() { b.pool.Close() }

// window holds the sums over one template-sized image window.
type window struct {
	sqdiff     float64 // Σ(I−T)²
	dot        float64 // Σ(I·T)
	imgEnergy  float64 // ΣI²
	tmplEnergy float64 // ΣT²
}

func (w window) denom() float64 {
	return math.Sqrt(w.imgEnergy * w.tmplEnergy)
}

// softwareKernels maps each method to the value it reports for a window.
// The correlation coefficient entries see mean-subtracted inputs, so they
// share the cross correlation formulas.
var softwareKernels = [MethodCount]func(w window) float32{
	SumOfSquaredDifference: func(w window) float32 {
		return float32(w.sqdiff)
	},
	SumOfSquaredDifferenceNormed: func(w window) float32 {
		d := w.denom()
		if d <= denomEpsilon {
			if w.sqdiff == 0 {
				return 0
			}
			return 1
		}
		return float32(w.sqdiff / d)
	},
	CrossCorrelation:             dotKernel,
	CrossCorrelationNormed:       normedDotKernel,
	CorrelationCoefficient:       dotKernel,
	CorrelationCoefficientNormed: normedDotKernel,
}

func dotKernel(w window) float32 {
	return float32(w.dot)
}

func normedDotKernel(w window) float32 {
	d := w.denom()
	if d <= denomEpsilon {
		return 0
	}
	return float32(w.dot / d)
}

// Correlate implements Backend.
func (b *SoftwareBackend) Correlate(img, tmpl *Image, method Method) (*Image, error) {
	if img.Empty() || tmpl.Empty() {
		return nil, ErrEmptyImage
	}
	if err := errors.Join(img.CheckPix(), tmpl.CheckPix()); err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	if err := checkFits(img, tmpl); err != nil {
		return nil, err
	}

	rw, rh := img.Width-tmpl.Width+1, img.Height-tmpl.Height+1
	out := NewImage(rw, rh)
	kernel := softwareKernels[method]

	var tmplEnergy float64
	for _, t := range tmpl.Pix {
		tmplEnergy += float64(t) * float64(t)
	}

	b.pool.ForRange(rh, 0, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := range rw {
				w := sumWindow(img, tmpl, x, y)
				w.tmplEnergy = tmplEnergy
				out.Pix[y*rw+x] = kernel(w)
			}
		}
	})
	return out, nil
}

// sumWindow accumulates the sums of the window whose top-left is (x, y).
func sumWindow(img, tmpl *Image, x, y int) window {
	var w window
	tw := tmpl.Width
	for j := range tmpl.Height {
		irow := img.Pix[(y+j)*img.Width+x : (y+j)*img.Width+x+tw]
		trow := tmpl.Pix[j*tw : (j+1)*tw]
		for i, t := range trow {
			a, b := float64(irow[i]), float64(t)
			d := a - b
			w.sqdiff += d * d
			w.dot += a * b
			w.imgEnergy += a * a
		}
	}
	return w
}
