package engine

import (
	"sync"

	"chronicle/discuss/internal/comment"
)

// Registry owns one Coordinator per discussion key. It is created and torn
// down by its consumer.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	items map[comment.Key]*Coordinator
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps.withDefaults(), items: map[comment.Key]*Coordinator{}}
}

// Open returns the coordinator for key, creating an empty one if needed.
func (r *Registry) Open(key comment.Key) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[key]; ok {
		return existing
	}
	coordinator := New(key, r.deps)
	r.items[key] = coordinator
	return coordinator
}

// Close discards the coordinator for key, if any.
func (r *Registry) Close(key comment.Key) {
	r.mu.Lock()
	coordinator, ok := r.items[key]
	delete(r.items, key)
	r.mu.Unlock()
	if ok {
		coordinator.Close()
	}
}

// Switch moves a consumer from one discussion to another. The old state is
// dropped and the new coordinator starts empty until loaded.
func (r *Registry) Switch(from, to comment.Key) *Coordinator {
	if from != to {
		r.Close(from)
	}
	return r.Open(to)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// CloseAll tears down every coordinator.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	items := r.items
	r.items = map[comment.Key]*Coordinator{}
	r.mu.Unlock()
	for _, coordinator := range items {
		coordinator.Close()
	}
}
