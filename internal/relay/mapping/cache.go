// Package mapping keeps a short, memory-only record of which destination messages were produced
// for recent source messages, so edits and deletions can follow them.
//
// Eviction is strict FIFO by first insertion of a source key. Re-putting a known key only updates
// its destinations and never refreshes its position.
package mapping

import (
	"sync"

	"github.com/lueurxax/telegram-relay-bot/internal/core/domain"
)

// DefaultCapacity is the number of source messages remembered.
const DefaultCapacity = 3

// Destinations maps a destination channel id to the message id sent there.
type Destinations map[int64]int

// Cache is a bounded FIFO map from source message to destination messages.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[domain.SourceKey]Destinations
	order    []domain.SourceKey
	onEvict  func(domain.SourceKey)
}

// Option configures a Cache.
type Option func(*Cache)

// WithEvictHook registers a callback invoked with every evicted key.
func WithEvictHook(fn func(domain.SourceKey)) Option {
	return func(c *Cache) {
		c.onEvict = fn
	}
}

// New creates a cache holding at most capacity source keys. Non-positive capacity falls back to
// DefaultCapacity.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c := &Cache{
		capacity: capacity,
		entries:  make(map[domain.SourceKey]Destinations, capacity),
		order:    make([]domain.SourceKey, 0, capacity),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Put records that the source message was delivered to dest as msgID.
func (c *Cache) Put(key domain.SourceKey, dest int64, msgID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dests, ok := c.entries[key]; ok {
		dests[dest] = msgID

		return
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)

		if c.onEvict != nil {
			c.onEvict(oldest)
		}
	}

	c.entries[key] = Destinations{dest: msgID}
	c.order = append(c.order, key)
}

// Get returns a copy of the destinations recorded for the source message.
func (c *Cache) Get(key domain.SourceKey) (Destinations, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dests, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	out := make(Destinations, len(dests))
	for k, v := range dests {
		out[k] = v
	}

	return out, true
}

// Forget drops a single destination from a source entry. The entry itself stays resident.
func (c *Cache) Forget(key domain.SourceKey, dest int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dests, ok := c.entries[key]; ok {
		delete(dests, dest)
	}
}

// Remove drops the source message entirely.
func (c *Cache) Remove(key domain.SourceKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}

	delete(c.entries, key)

	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)

			break
		}
	}
}

// Len returns the number of resident source keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}

// Keys returns resident source keys, oldest first.
func (c *Cache) Keys() []domain.SourceKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]domain.SourceKey(nil), c.order...)
}
