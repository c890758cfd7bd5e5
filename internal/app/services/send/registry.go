package send

import (
	"context"
	"sync"
)

// Handle is the caller's grip on an in-flight pipeline. It allows
// cancellation and nothing else; ownership stays with the registry.
type Handle struct {
	id     string
	cancel context.CancelFunc
}

// ID returns the request identifier the handle tracks.
func (h *Handle) ID() string { return h.id }

// Cancel aborts the pipeline. The terminal callback still fires exactly
// once.
func (h *Handle) Cancel() { h.cancel() }

// Registry owns active pipelines keyed by request ID. A pipeline is removed
// on any terminal transition, exactly once.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Handle)}
}

func (r *Registry) add(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[h.id]; exists {
		return false
	}
	r.active[h.id] = h
	return true
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

// Len reports the number of active pipelines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Cancel aborts the pipeline for a request ID, if one is active.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	h, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		h.cancel()
	}
	return ok
}
