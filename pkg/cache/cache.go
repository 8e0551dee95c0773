package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	value      T
	expiration time.Time
}

// Cache is a goroutine-safe TTL cache. Entries accessed through GetOrCreate
// slide their expiration forward, so idle entries age out first.
type Cache[T any] struct {
	mu      sync.Mutex
	data    map[string]item[T]
	ttl     time.Duration
	onEvict func(key string, value T)
}

// New creates a cache whose entries live for ttl after their last write.
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		data: make(map[string]item[T]),
		ttl:  ttl,
	}
}

// OnEvict registers a callback invoked (outside the lock) for expired or busted entries.
func (c *Cache[T]) OnEvict(fn func(key string, value T)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the value for key if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	it, ok := c.data[key]
	if ok && time.Now().After(it.expiration) {
		delete(c.data, key)
		c.mu.Unlock()
		c.evicted(key, it.value)
		var zero T
		return zero, false
	}
	c.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Put inserts or overwrites key.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	c.data[key] = item[T]{value: value, expiration: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// GetOrCreate returns the live value for key, creating it with build when
// missing. Either way the entry's expiration is pushed out by ttl.
func (c *Cache[T]) GetOrCreate(key string, build func() T) T {
	c.mu.Lock()
	now := time.Now()
	it, ok := c.data[key]
	var stale *item[T]
	if ok && now.After(it.expiration) {
		expired := it
		stale = &expired
		ok = false
	}
	if !ok {
		it = item[T]{value: build()}
	}
	it.expiration = now.Add(c.ttl)
	c.data[key] = it
	c.mu.Unlock()

	if stale != nil {
		c.evicted(key, stale.value)
	}
	return it.value
}

// Bust removes key immediately.
func (c *Cache[T]) Bust(key string) {
	c.mu.Lock()
	it, ok := c.data[key]
	delete(c.data, key)
	c.mu.Unlock()
	if ok {
		c.evicted(key, it.value)
	}
}

// Len reports the number of entries, expired ones included until swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// StartCleaner sweeps expired entries every interval until stop is closed.
func (c *Cache[T]) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-stop:
			return
		}
	}
}

func (c *Cache[T]) cleanupExpired() {
	now := time.Now()
	var expired []struct {
		key   string
		value T
	}

	c.mu.Lock()
	for k, v := range c.data {
		if now.After(v.expiration) {
			delete(c.data, k)
			expired = append(expired, struct {
				key   string
				value T
			}{k, v.value})
		}
	}
	c.mu.Unlock()

	for _, e := range expired {
		c.evicted(e.key, e.value)
	}
}

func (c *Cache[T]) evicted(key string, value T) {
	c.mu.Lock()
	fn := c.onEvict
	c.mu.Unlock()
	if fn != nil {
		fn(key, value)
	}
}
