package host

import "sync"

// Requests tracks in-flight operations by tag. Each poller guards against
// overlapping fetches by registering its tag for the duration of a request.
type Requests struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewRequests creates an empty registry.
func NewRequests() *Requests {
	return &Requests{active: make(map[string]struct{})}
}

// Add marks a tag as in flight. Returns false if it already was.
func (r *Requests) Add(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[tag]; ok {
		return false
	}
	r.active[tag] = struct{}{}
	return true
}

// Remove clears a tag.
func (r *Requests) Remove(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, tag)
}

// Active reports whether a tag is in flight.
func (r *Requests) Active(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[tag]
	return ok
}
