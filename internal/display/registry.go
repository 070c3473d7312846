package display

import (
	"fmt"
	"sort"
	"sync"
)

// Entry is one running scene. Exactly one of Process and Window.Surface is set.
type Entry struct {
	Window  Window
	Process Process
}

// Registry maps scene names to their running entry.
type Registry struct {
	mu    sync.Mutex
	items map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Entry)}
}

// Insert adds an entry; an existing name is left untouched.
func (r *Registry) Insert(name string, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	r.items[name] = entry
	return nil
}

// Take removes and returns the entry for name in one step.
func (r *Registry) Take(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[name]
	if ok {
		delete(r.items, name)
	}
	return entry, ok
}

func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.items[name]
	return entry, ok
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Names returns registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
