package tmatch

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Backend computes correlation surfaces.
//
// Correlate returns the valid correlation of img against tmpl: a surface of
// (img.Width−tmpl.Width+1)×(img.Height−tmpl.Height+1) values. Padding and
// the mean-subtraction pre-pass are applied by the Engine before Correlate is
// called. Implementations must reject a template larger than the image with a
// *DimensionError.
//
// Backends are not required to be safe for concurrent use. Wrap them in an
// Engine, which serializes calls.
type Backend interface {
	// Name returns a short identifier such as "software" or "gpu".
	Name() string

	// Correlate computes the surface for one method.
	Correlate(img, tmpl *Image, method Method) (*Image, error)

	// Close releases all resources. Close must be safe to call more than once.
	Close()
}

// BackendFactory constructs a backend on demand.
type BackendFactory func() (Backend, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFactory{}
)

// RegisterBackend makes a backend factory available to OpenBackend under
// name. Backend packages call this from init:
//
//	import _ "github.com/gogpu/tmatch/gpu" // registers "gpu"
//
// Registering the same name twice replaces the earlier factory.
func RegisterBackend(name string, f BackendFactory) error {
	if name == "" || f == nil {
		return errors.New("tmatch: backend name and factory must be set")
	}
	backendsMu.Lock()
	backends[name] = f
	backendsMu.Unlock()
	return nil
}

// OpenBackend constructs the backend registered under name.
func OpenBackend(name string) (Backend, error) {
	backendsMu.RLock()
	f, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tmatch: unknown backend %q (registered: %v)", name, BackendNames())
	}
	b, err := f()
	if err != nil {
		return nil, fmt.Errorf("tmatch: open backend %q: %w", name, err)
	}
	return b, nil
}

// BackendNames returns the registered backend names in sorted order.
func BackendNames() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func init() {
	_ = RegisterBackend(SoftwareBackendName, func() (Backend, error) {
		return NewSoftwareBackend(0), nil
	})
}
