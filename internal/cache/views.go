package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// viewItem wraps a cached value with its expiry.
type viewItem[T any] struct {
	value     T
	expiresAt time.Time
}

// ViewCache is a bounded LRU for hot per-entry views. Unlike the query
// Store it has a fixed size, so a long browsing session cannot grow the
// cache without bound.
type ViewCache[T any] struct {
	storage *lru.Cache[string, viewItem[T]]
	ttl     time.Duration
}

// NewViewCache creates a view cache holding at most size items, each valid
// for ttl.
func NewViewCache[T any](size int, ttl time.Duration) *ViewCache[T] {
	c, _ := lru.New[string, viewItem[T]](size)
	return &ViewCache[T]{storage: c, ttl: ttl}
}

// Get returns the cached view, if present and unexpired.
func (c *ViewCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(item.expiresAt) {
		c.storage.Remove(key)
		return zero, false
	}
	return item.value, true
}

// Set stores (or replaces) the view under key.
func (c *ViewCache[T]) Set(key string, value T) {
	c.storage.Add(key, viewItem[T]{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// Delete drops the view under key.
func (c *ViewCache[T]) Delete(key string) {
	c.storage.Remove(key)
}

// Purge drops everything.
func (c *ViewCache[T]) Purge() {
	c.storage.Purge()
}

// Len returns the number of cached views, expired ones included.
func (c *ViewCache[T]) Len() int {
	return c.storage.Len()
}
