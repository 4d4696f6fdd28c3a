package inflight

import "sync"

// Registry coalesces concurrent callers that share a key into groups.
// The first caller for a key becomes the owner of a new group and performs
// the work; later callers join that group until it is drained.
//
// All mutations happen under a single mutex that is held only for the map
// operation itself.
type Registry[V any, W any] struct {
	mu sync.Mutex
	m  map[string]*Group[V, W]
}

// Group is one coalesced unit of work. Value is set once by the owner's
// create function and never changes afterwards.
type Group[V any, W any] struct {
	Value V

	key     string
	waiters []W
	drained bool
}

// Key returns the key the group was registered under.
func (g *Group[V, W]) Key() string {
	return g.key
}

// New creates an empty Registry.
func New[V any, W any]() *Registry[V, W] {
	return &Registry[V, W]{
		m: make(map[string]*Group[V, W]),
	}
}

// Join appends w to the group registered under key. When no group exists a
// new one is created with w as its sole waiter, create is called (under the
// registry lock) to build its Value, and owner is true.
func (r *Registry[V, W]) Join(key string, w W, create func(*Group[V, W]) V) (g *Group[V, W], owner bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.m[key]; ok {
		g.waiters = append(g.waiters, w)
		return g, false
	}

	g = &Group[V, W]{
		key:     key,
		waiters: []W{w},
	}
	if create != nil {
		g.Value = create(g)
	}
	r.m[key] = g
	return g, true
}

// Drain removes g from the registry and returns its waiters in the order they
// joined. Draining a group twice returns nil the second time.
func (r *Registry[V, W]) Drain(g *Group[V, W]) []W {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.drained {
		return nil
	}
	if r.m[g.key] == g {
		delete(r.m, g.key)
	}
	g.drained = true
	waiters := g.waiters
	g.waiters = nil
	return waiters
}

// Forget unmaps g so that later callers for the same key start a new group.
// The waiters already in g stay with it and are still returned by Drain.
func (r *Registry[V, W]) Forget(g *Group[V, W]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.m[g.key] == g {
		delete(r.m, g.key)
	}
}

// ForgetIf unmaps g when pred reports true for its current waiters. pred runs
// under the registry lock and must not block.
func (r *Registry[V, W]) ForgetIf(g *Group[V, W], pred func([]W) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.drained || r.m[g.key] != g {
		return false
	}
	if !pred(g.waiters) {
		return false
	}
	delete(r.m, g.key)
	return true
}

// Waiters returns the number of callers waiting on the group under key.
func (r *Registry[V, W]) Waiters(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.m[key]; ok {
		return len(g.waiters)
	}
	return 0
}

// Len returns the number of open groups.
func (r *Registry[V, W]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.m)
}
