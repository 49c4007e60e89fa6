// Package resource loads template images for matching.
//
// A Loader decodes each template once, converts it to luma, optionally
// rescales and blurs it, and keeps the result in an LRU cache so hot loops
// can ask for the same template on every frame.
//
//	loader := resource.NewLoader("assets/templates", resource.WithScale(0.5))
//	tmpl, err := loader.Template("start_button.png")
//
// PNG, JPEG, BMP, TIFF and WebP files are supported.
package resource

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"io/fs"
	"os"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/gogpu/tmatch"
	"github.com/gogpu/tmatch/internal/cache"
)

// DefaultCapacity is the number of templates a Loader caches by default.
const DefaultCapacity = 128

// ErrTemplateNotFound is returned when a template file does not exist.
var ErrTemplateNotFound = errors.New("resource: template not found")

// Loader decodes and caches templates. Loader is safe for concurrent use.
//
// Templates returned by a Loader are shared between callers and must not be
// modified.
type Loader struct {
	fsys      fs.FS
	capacity  int
	scale     float64
	blurSigma float64
	cache     *cache.Cache[string, *tmatch.Image]
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS reads templates from fsys instead of the directory given to
// NewLoader. Useful with embed.FS.
func WithFS(fsys fs.FS) LoaderOption {
	return func(l *Loader) {
		l.fsys = fsys
	}
}

// WithCapacity sets the number of cached templates. 0 means unlimited.
func WithCapacity(n int) LoaderOption {
	return func(l *Loader) {
		l.capacity = n
	}
}

// WithScale resizes templates by factor f with a Lanczos filter. Use it when
// templates were captured at a different resolution than the screen.
func WithScale(f float64) LoaderOption {
	return func(l *Loader) {
		l.scale = f
	}
}

// WithBlur applies a Gaussian blur of the given radius to every template.
// Blurring both template and screenshot makes matching tolerant of
// resampling noise.
func WithBlur(radius float64) LoaderOption {
	return func(l *Loader) {
		l.blurSigma = radius
	}
}

// NewLoader creates a loader reading from dir.
func NewLoader(dir string, opts ...LoaderOption) *Loader {
	l := &Loader{capacity: DefaultCapacity, scale: 1}
	for _, opt := range opts {
		opt(l)
	}
	if l.fsys == nil {
		l.fsys = os.DirFS(dir)
	}
	l.cache = cache.New[string, *tmatch.Image](l.capacity)
	return l
}

// Template returns the luma image for name, decoding it on first use.
func (l *Loader) Template(name string) (*tmatch.Image, error) {
	return l.cache.GetOrLoad(name, func() (*tmatch.Image, error) {
		return l.load(name)
	})
}

// Preload decodes names into the cache and reports every failure.
func (l *Loader) Preload(names ...string) error {
	var errs []error
	for _, name := range names {
		if _, err := l.Template(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Evict drops name from the cache so the next Template call re-reads it.
func (l *Loader) Evict(name string) bool {
	return l.cache.Delete(name)
}

// Stats describes the template cache.
type Stats struct {
	Cached    int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of the cache statistics.
func (l *Loader) Stats() Stats {
	s := l.cache.Stats()
	return Stats{Cached: s.Len, Hits: s.Hits, Misses: s.Misses, Evictions: s.Evictions}
}

func (l *Loader) load(name string) (*tmatch.Image, error) {
	f, err := l.fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("resource: open %s: %w", name, err)
	}
	defer func() {
		_ = f.Close()
	}()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("resource: decode %s: %w", name, err)
	}
	out := tmatch.FromImage(Preprocess(img, l.scale, l.blurSigma))
	if out.Empty() {
		return nil, fmt.Errorf("resource: %s: %w", name, tmatch.ErrEmptyImage)
	}
	tmatch.Logger().Debug("resource: template loaded",
		"name", name, "format", format, "width", out.Width, "height", out.Height)
	return out, nil
}

// Decode reads one image from r and converts it to luma.
func Decode(r io.Reader) (*tmatch.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("resource: decode: %w", err)
	}
	return tmatch.FromImage(img), nil
}

// Preprocess scales img by scale and blurs it with a Gaussian of radius
// blurRadius. A scale of 1 (or 0) and a radius of 0 leave img unchanged.
// Scaled sizes are at least one pixel.
func Preprocess(img image.Image, scale, blurRadius float64) image.Image {
	if scale > 0 && scale != 1 {
		b := img.Bounds()
		w := max(int(float64(b.Dx())*scale+0.5), 1)
		h := max(int(float64(b.Dy())*scale+0.5), 1)
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	if blurRadius > 0 {
		img = blur.Gaussian(img, blurRadius)
	}
	return img
}
