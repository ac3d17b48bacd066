package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/viper"
)

// Factory builds an AIProvider from its configuration subtree. The viper
// instance handed in is already scoped to the provider block, so a factory
// reads "api_key", "model" and friends directly.
type Factory func(v *viper.Viper) (AIProvider, error)

// Registry maps provider names to factories. Provider packages register
// themselves in init(); the blank imports in internal/provider/init pull
// them all in.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry, mainly for tests; production
// code goes through the package-level functions and the global registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering a name twice panics,
// so a duplicate registration fails loudly at startup rather than
// shadowing a provider.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("provider: factory already registered for %q", name))
	}
	r.factories[name] = f
}

// Get instantiates the named provider with the given configuration.
func (r *Registry) Get(name string, v *viper.Viper) (AIProvider, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q (registered: %v)", name, r.Names())
	}
	return f(v)
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var globalRegistry = NewRegistry()

// Register, Get and Names delegate to the process-wide registry.

func Register(name string, f Factory) { globalRegistry.Register(name, f) }

func Get(name string, v *viper.Viper) (AIProvider, error) { return globalRegistry.Get(name, v) }

func Names() []string { return globalRegistry.Names() }
