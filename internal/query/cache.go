package query

import "sync"

// Keyed is implemented by items that can live in a PageCache.
type Keyed interface {
	Key() string
}

// Merge combines existing and incoming items into a deduplicated sequence
// bounded to capacity.
//
// Items are concatenated (existing first). For a key seen more than once the
// last occurrence's value wins but keeps the position of the first
// occurrence. When the result exceeds capacity only the last capacity items
// are kept. A capacity <= 0 disables the bound. Inputs are never modified.
func Merge[T Keyed](existing, incoming []T, capacity int) []T {
	total := len(existing) + len(incoming)
	pos := make(map[string]int, total)
	merged := make([]T, 0, total)

	add := func(item T) {
		k := item.Key()
		if i, ok := pos[k]; ok {
			merged[i] = item
			return
		}
		pos[k] = len(merged)
		merged = append(merged, item)
	}
	for _, item := range existing {
		add(item)
	}
	for _, item := range incoming {
		add(item)
	}

	if capacity > 0 && len(merged) > capacity {
		merged = merged[len(merged)-capacity:]
	}
	return merged
}

// PageCache accumulates fetched pages for one stream.
type PageCache[T Keyed] struct {
	items    []T
	capacity int
	mu       sync.RWMutex
}

// NewPageCache creates an empty cache. capacity <= 0 means unbounded.
func NewPageCache[T Keyed](capacity int) *PageCache[T] {
	return &PageCache[T]{capacity: capacity}
}

// Merge folds a page of items into the cache and returns the new length.
func (c *PageCache[T]) Merge(incoming []T) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = Merge(c.items, incoming, c.capacity)
	return len(c.items)
}

// Items returns a copy of the cached items in cache order.
func (c *PageCache[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached items.
func (c *PageCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Capacity returns the configured bound.
func (c *PageCache[T]) Capacity() int {
	return c.capacity
}

// Clear drops every cached item.
func (c *PageCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
