package history

import (
	"fmt"
	"sort"
	"sync"

	"channel-history/internal/domain"
)

// Registry holds the tracked histories of a process by id
type Registry struct {
	mu      sync.RWMutex
	tracked map[string]*Tracked
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tracked: make(map[string]*Tracked),
	}
}

// Add registers t under its id
func (r *Registry) Add(t *Tracked) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked[t.ID()] = t
}

// Get returns the tracked history with the given id
func (r *Registry) Get(id string) (*Tracked, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tracked[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTrackedHistoryNotFound, id)
	}
	return t, nil
}

// Remove closes and forgets the tracked history with the given id
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	t, ok := r.tracked[id]
	delete(r.tracked, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTrackedHistoryNotFound, id)
	}
	t.Close()
	return nil
}

// List returns the tracked histories, oldest first
func (r *Registry) List() []*Tracked {
	r.mu.RLock()
	out := make([]*Tracked, 0, len(r.tracked))
	for _, t := range r.tracked {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// CloseAll closes every tracked history and empties the registry
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.tracked
	r.tracked = make(map[string]*Tracked)
	r.mu.Unlock()

	for _, t := range all {
		t.Close()
	}
}
