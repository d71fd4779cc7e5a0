package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saiset-co/sai-social/types"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Container is a single TTL tier. Every entry shares the container TTL and
// keys are stored as prefix + id.
type Container[T any] struct {
	name     string
	prefix   string
	ttl      time.Duration
	clock    types.Clock
	recorder *operationRecorder
	data     map[string]entry[T]
	hits     uint64
	misses   uint64
	mu       sync.RWMutex
}

func newContainer[T any](name, prefix string, ttl time.Duration, clock types.Clock, recorder *operationRecorder) *Container[T] {
	return &Container[T]{
		name:     name,
		prefix:   prefix,
		ttl:      ttl,
		clock:    clock,
		recorder: recorder,
		data:     make(map[string]entry[T]),
	}
}

func (c *Container[T]) Name() string {
	return c.name
}

func (c *Container[T]) TTL() time.Duration {
	return c.ttl
}

func (c *Container[T]) Get(id string) (T, bool) {
	var zero T

	key := c.prefix + id
	now := c.clock.Now()

	c.mu.RLock()
	item, exists := c.data[key]
	if !exists {
		c.mu.RUnlock()
		c.miss()
		return zero, false
	}

	if now.After(item.expiresAt) {
		c.mu.RUnlock()
		c.mu.Lock()
		if item, exists := c.data[key]; exists && now.After(item.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()

		c.miss()
		return zero, false
	}

	value := item.value
	c.mu.RUnlock()

	atomic.AddUint64(&c.hits, 1)
	c.recorder.record(c.name, "get", "hit")

	return value, true
}

func (c *Container[T]) Set(id string, value T) {
	key := c.prefix + id

	c.mu.Lock()
	c.data[key] = entry[T]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	c.mu.Unlock()

	c.recorder.record(c.name, "set", "success")
}

func (c *Container[T]) Delete(id string) {
	c.mu.Lock()
	delete(c.data, c.prefix+id)
	c.mu.Unlock()

	c.recorder.record(c.name, "delete", "success")
}

// DeletePrefix removes every stored key starting with keyPrefix and
// returns how many were dropped. keyPrefix is matched against full keys.
func (c *Container[T]) DeletePrefix(keyPrefix string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.data {
		if strings.HasPrefix(key, keyPrefix) {
			delete(c.data, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.recorder.record(c.name, "delete_prefix", "success")
	return removed
}

// Keys lists unexpired keys.
func (c *Container[T]) Keys() []string {
	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for key, item := range c.data {
		if !now.After(item.expiresAt) {
			keys = append(keys, key)
		}
	}

	return keys
}

func (c *Container[T]) Len() int {
	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, item := range c.data {
		if !now.After(item.expiresAt) {
			count++
		}
	}

	return count
}

func (c *Container[T]) Stats() types.ContainerStats {
	return types.ContainerStats{
		Name:   c.name,
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
		Keys:   c.Len(),
		TTL:    c.ttl,
	}
}

// Flush drops all entries. Counters are left as they are.
func (c *Container[T]) Flush() {
	c.mu.Lock()
	c.data = make(map[string]entry[T])
	c.mu.Unlock()

	c.recorder.record(c.name, "flush", "success")
}

func (c *Container[T]) FlushExpired() int {
	now := c.clock.Now()

	c.mu.Lock()
	expired := 0
	for key, item := range c.data {
		if now.After(item.expiresAt) {
			delete(c.data, key)
			expired++
		}
	}
	c.mu.Unlock()

	c.recorder.record(c.name, "flush_expired", "success")
	return expired
}

func (c *Container[T]) miss() {
	atomic.AddUint64(&c.misses, 1)
	c.recorder.record(c.name, "get", "miss")
}
