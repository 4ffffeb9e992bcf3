// Package cache provides a bounded in-process map with insertion-order
// batch eviction: when an insert pushes the cache past its capacity, the
// oldest entries are dropped in one pass until only the keep count remain.
// Updating an existing key does not refresh its position.
package cache

import (
	"container/list"
	"fmt"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	keep     int
	order    *list.List
	index    map[K]*list.Element
}

// New returns a cache that evicts down to keep entries once an insert
// exceeds capacity. Panics on a non-positive capacity or a keep count not
// below it; both are construction-time programming errors.
func New[K comparable, V any](capacity, keep int) *Cache[K, V] {
	if capacity <= 0 || keep < 0 || keep >= capacity {
		panic(fmt.Sprintf("cache: invalid bounds capacity=%d keep=%d", capacity, keep))
	}
	return &Cache[K, V]{
		capacity: capacity,
		keep:     keep,
		order:    list.New(),
		index:    make(map[K]*list.Element),
	}
}

// Set inserts or updates a key. Updates keep the key's original insertion
// position so long-lived entries still age out.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		return
	}
	c.index[key] = c.order.PushBack(&entry[K, V]{key: key, value: value})
	if c.order.Len() > c.capacity {
		c.evictLocked()
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.index[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.index, key)
	return true
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns keys in insertion order, oldest first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]K, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(*entry[K, V]).key)
	}
	return out
}

func (c *Cache[K, V]) evictLocked() {
	for c.order.Len() > c.keep {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*entry[K, V]).key)
	}
}
