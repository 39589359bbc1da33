package gateway

import (
	"fmt"
	"sync"

	"github.com/Alturino/hiicart/internal/errors"
)

// Factory constructs a configured adapter. Adapters are registered under a
// stable name which is also what carts persist in their gateway column.
type Factory func(settings map[string]string) (Adapter, error)

// Registry is the static name -> factory table gateways are looked up in.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get builds the named adapter or reports ErrUnknownGateway.
func (r *Registry) Get(name string, settings map[string]string) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownGateway, name)
	}
	adapter, err := factory(settings)
	if err != nil {
		return nil, fmt.Errorf("failed constructing gateway=%s with error=%w", name, err)
	}
	return adapter, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
