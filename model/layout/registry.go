package layout

import "sync"

// Registry interns constraint sets so that equal sets share one ID.
// Registered sets are immutable; lookups never mutate the registry.
type Registry struct {
	mu     sync.RWMutex
	nextID ID
	byKey  map[string]ID
	byID   map[ID]ConstraintSet
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		byKey:  make(map[string]ID),
		byID:   make(map[ID]ConstraintSet),
	}
}

// Register interns the set and returns its ID. Registering an equal set
// twice yields the same ID.
func (r *Registry) Register(set ConstraintSet) ID {
	key := set.Key()
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if ok {
		return id
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok = r.byKey[key]; ok {
		return id
	}
	id = r.nextID
	r.nextID++
	r.byKey[key] = id
	r.byID[id] = set
	return id
}

// Lookup returns the set interned under id; ok is false for unknown or
// NoID ids.
func (r *Registry) Lookup(id ID) (ConstraintSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.byID[id]
	return set, ok
}
