package overlay

import "sort"

type entry struct {
	sourceCreated    bool
	handlersAttached bool
}

// Registry records, per overlay id, what has been created on the surface.
// It lives exactly as long as the surface it describes.
type Registry struct {
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func (r *Registry) get(id string) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	return e
}

func (r *Registry) markSource(id string)   { r.get(id).sourceCreated = true }
func (r *Registry) markHandlers(id string) { r.get(id).handlersAttached = true }

func (r *Registry) handlersAttached(id string) bool {
	e, ok := r.entries[id]
	return ok && e.handlersAttached
}

func (r *Registry) forget(id string) bool {
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// Has reports whether id has a source on the surface.
func (r *Registry) Has(id string) bool {
	e, ok := r.entries[id]
	return ok && e.sourceCreated
}

// HandlersAttached reports whether id's handlers are bound.
func (r *Registry) HandlersAttached(id string) bool { return r.handlersAttached(id) }

// IDs lists registered overlays in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
