package vcs

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Host from a token and an optional base URL override
// (self-managed GitLab, GitHub Enterprise).
type Factory func(token, baseURL string) (Host, error)

// Registry maps platform names to factories. Host packages register
// themselves in init(); the blank imports in internal/vcs/init pull
// them all in.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry, mainly for tests.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, panicking on duplicates so a
// shadowed platform fails loudly at startup.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("vcs: factory already registered for %q", name))
	}
	r.factories[name] = f
}

// Get instantiates the named platform host.
func (r *Registry) Get(name string, token, baseURL string) (Host, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vcs: unknown platform %q (registered: %v)", name, r.Names())
	}
	return f(token, baseURL)
}

// Names lists registered platforms in sorted order.
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

func Get(name string, token, baseURL string) (Host, error) {
	return globalRegistry.Get(name, token, baseURL)
}

func Names() []string { return globalRegistry.Names() }
