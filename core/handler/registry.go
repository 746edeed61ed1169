// Package handler maps resolved schema paths to application callbacks.
// The dispatcher looks a handler up only after validation and
// authorization succeed; dispatch is always through this registry, never
// open-ended reflection over caller-supplied strings.
package handler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/datagate/ports"
)

// Registry manages registered callbacks by schema path.
// Thread-safe for concurrent access.
type Registry struct {
	mu sync.RWMutex

	// handlers maps schema path -> handler
	handlers map[string]ports.Handler

	// byModule maps module name -> registered paths
	byModule map[string][]string
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]ports.Handler),
		byModule: make(map[string][]string),
	}
}

// Register binds a handler to a schema path.
// Returns an error if the path already has a handler.
func (r *Registry) Register(path string, h ports.Handler) error {
	if path == "" {
		return fmt.Errorf("empty handler path")
	}
	if h == nil {
		return fmt.Errorf("nil handler for %q", path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[path]; exists {
		return fmt.Errorf("handler for %q already registered", path)
	}

	r.handlers[path] = h
	mod := moduleOf(path)
	r.byModule[mod] = append(r.byModule[mod], path)
	return nil
}

// Unregister removes the handler for a path.
func (r *Registry) Unregister(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[path]; !exists {
		return fmt.Errorf("no handler for %q", path)
	}
	delete(r.handlers, path)

	mod := moduleOf(path)
	r.byModule[mod] = removeFromSlice(r.byModule[mod], path)
	return nil
}

// Lookup retrieves the handler for a path, if any.
func (r *Registry) Lookup(path string) (ports.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[path]
	return h, ok
}

// PathsByModule returns registered paths within a module, sorted.
func (r *Registry) PathsByModule(module string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.byModule[module]))
	copy(out, r.byModule[module])
	sort.Strings(out)
	return out
}

// Paths returns all registered paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func moduleOf(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}

// Helper to remove an element from a slice
func removeFromSlice(slice []string, item string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != item {
			result = append(result, s)
		}
	}
	return result
}
