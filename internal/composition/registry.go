// Package composition declares the videos marketreel can render and sequences
// their slides onto the frame timeline.
package composition

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound  = errors.New("composition not found")
	ErrDuplicate = errors.New("composition already registered")
)

// Registry holds prepared compositions by id.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Composition
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Composition)}
}

// Register prepares c and adds it under its id.
func (r *Registry) Register(c *Composition) error {
	if err := c.Prepare(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.ID)
	}
	r.items[c.ID] = c
	return nil
}

func (r *Registry) Get(id string) (*Composition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// List returns compositions sorted by id.
func (r *Registry) List() []*Composition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Composition, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
