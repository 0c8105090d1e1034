// Package registry provides a small concurrency-safe generic registry used
// for providers, models, and active reasoning sessions.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a mutex-guarded map keyed by name. The zero value is not
// usable; construct with New.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func New[T any]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// Register adds an item under a unique name.
func (r *Registry[T]) Register(name string, item T) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("item %q already registered", name)
	}

	r.items[name] = item
	return nil
}

// Put adds or replaces an item.
func (r *Registry[T]) Put(name string, item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[name] = item
}

func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	return item, exists
}

// List returns a snapshot of all items in unspecified order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]T, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	return items
}

// Names returns the registered names sorted lexically.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the items for which keep returns true, in unspecified order.
func (r *Registry[T]) Find(keep func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []T
	for _, item := range r.items {
		if keep(item) {
			items = append(items, item)
		}
	}
	return items
}

// Remove deletes an item. Removing a missing name is not an error; the
// returned bool reports whether anything was removed.
func (r *Registry[T]) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; !exists {
		return false
	}
	delete(r.items, name)
	return true
}

func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[string]T)
}
