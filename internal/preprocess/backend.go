package preprocess

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"
	"sync"
)

// ErrNoBackend is returned when a backend name is not linked into the binary.
var ErrNoBackend = errors.New("preprocess: backend not available; the opencv backend needs -tags=gocv")

// Backend computes edge maps. The pure-Go backend is always present; an
// OpenCV implementation is linked in with the gocv build tag.
type Backend interface {
	Name() string
	EdgeMap(img image.Image, cfg Config) (*EdgeMap, error)
}

// DefaultBackendName is the backend used when none is configured.
const DefaultBackendName = "go"

var (
	backendsMu sync.RWMutex
	backends   = map[string]func() Backend{
		DefaultBackendName: func() Backend { return goBackend{} },
	}
)

func registerBackend(name string, factory func() Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// NewBackend returns the backend registered under name; "" selects the
// default.
func NewBackend(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackendName
	}
	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoBackend, name)
	}
	return factory(), nil
}

// AvailableBackends lists the registered backend names in sorted order.
func AvailableBackends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return slices.Sorted(maps.Keys(backends))
}

type goBackend struct{}

func (goBackend) Name() string { return DefaultBackendName }

func (goBackend) EdgeMap(img image.Image, cfg Config) (*EdgeMap, error) {
	return Preprocess(img, cfg)
}
