// Package syncx holds values shared between the conversation loop,
// capture callbacks and HTTP handlers.
package syncx

import "sync"

// RWGuard guards a value and counts its revisions.
type RWGuard[T any] struct {
	mu       sync.RWMutex
	value    T
	revision uint64
}

// NewGuard creates a guarded value at revision 0.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns a copy of the value (T should be a value type or immutable).
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Load returns the value with its revision.
func (g *RWGuard[T]) Load() (T, uint64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value, g.revision
}

// Swap replaces the value, bumps the revision and returns the previous value.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	g.revision++
	return old
}

// View runs fn with the read lock held and returns its result.
func View[T, R any](g *RWGuard[T], fn func(T) R) R {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(g.value)
}
