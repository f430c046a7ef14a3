package registry

import "sync"

// Registry is a concurrency-safe mapping from keys to values, guarded by
// a sync.RWMutex so lookups never contend with each other. Lookups
// dominate in the intended uses (backend drivers resolved per Open call,
// registered once at init), which is why reads take the shared lock.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds a value under a key, replacing any previous value.
// Last registration wins: a host that wants to swap a built-in backend
// for its own simply registers over it.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has reports whether the key is registered.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Delete removes a key. Removing an absent key is a no-op.
func (r *Registry[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Keys returns the registered keys in map order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of registered entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry until fn returns false. Iteration works
// on a snapshot, so fn may Register or Delete without deadlocking or
// affecting the entries it still sees.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
