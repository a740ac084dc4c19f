// Package cache keeps the in-memory view of exchange state that the planners read every cycle.
package cache

import "sync"

// Collection is a keyed store holding at most one value per key.
// Writes are serialized; reads return copies so callers never observe later mutations.
type Collection[K comparable, V any] struct {
	mu    sync.RWMutex
	keyOf func(V) K
	items map[K]V
}

// NewCollection builds an empty collection deriving each value's key with keyOf.
func NewCollection[K comparable, V any](keyOf func(V) K) *Collection[K, V] {
	return &Collection[K, V]{keyOf: keyOf, items: make(map[K]V)}
}

// Add inserts v unless its key is already present. It reports whether v was stored.
func (c *Collection[K, V]) Add(v V) bool {
	k := c.keyOf(v)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[k]; ok {
		return false
	}
	c.items[k] = v
	return true
}

// Upsert replaces or inserts v in a single critical section, so readers never see the key absent.
func (c *Collection[K, V]) Upsert(v V) {
	k := c.keyOf(v)
	c.mu.Lock()
	c.items[k] = v
	c.mu.Unlock()
}

// UpsertFunc computes the new value for k from the current one under the write lock.
// Returning keep=false removes the key.
func (c *Collection[K, V]) UpsertFunc(k K, fn func(cur V, ok bool) (next V, keep bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.items[k]
	next, keep := fn(cur, ok)
	if !keep {
		delete(c.items, k)
		return
	}
	c.items[k] = next
}

// Remove deletes k. Removing an absent key is a no-op.
func (c *Collection[K, V]) Remove(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[k]; !ok {
		return false
	}
	delete(c.items, k)
	return true
}

// Get returns the value stored under k.
func (c *Collection[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[k]
	return v, ok
}

// All returns an independent copy of every stored value, in no particular order.
func (c *Collection[K, V]) All() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]V, 0, len(c.items))
	for _, v := range c.items {
		out = append(out, v)
	}
	return out
}

// Filter returns the stored values matching keep.
func (c *Collection[K, V]) Filter(keep func(V) bool) []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []V
	for _, v := range c.items {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Len reports the number of stored values.
func (c *Collection[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset drops every stored value.
func (c *Collection[K, V]) Reset() {
	c.mu.Lock()
	c.items = make(map[K]V)
	c.mu.Unlock()
}
