// Package cache provides an in-memory TTL + LRU byte cache used for
// analysis results and raw video bytes.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats reports cache activity counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Entries   int
}

type entry struct {
	key        string
	value      []byte
	ttl        time.Duration
	insertedAt time.Time
	lastAccess time.Time
	accesses   int64
}

// Cache is a fixed-capacity map with per-entry TTLs. When full it
// evicts the least recently used entry. Expired entries are swept
// lazily on writes and filtered on reads.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	stats    Stats

	// now is swappable for tests.
	now func() time.Time
}

// New returns a cache holding at most capacity entries. Capacity must
// be positive.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the value for key and whether it was present and fresh.
// A hit refreshes the entry's recency.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.removeElement(el)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}
	e.lastAccess = c.now()
	e.accesses++
	c.ll.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set stores value under key for ttl. A ttl of zero means the entry
// never expires. Setting an existing key replaces it.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.ttl = ttl
		e.insertedAt = c.now()
		e.lastAccess = e.insertedAt
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictOldest()
	}

	t := c.now()
	e := &entry{key: key, value: value, ttl: ttl, insertedAt: t, lastAccess: t}
	c.items[key] = c.ll.PushFront(e)
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of live entries, expired ones included until
// they are swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns a snapshot of the activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.ll.Len()
	return s
}

func (c *Cache) expired(e *entry) bool {
	return e.ttl > 0 && c.now().Sub(e.insertedAt) >= e.ttl
}

// sweep drops all expired entries. Caller holds the lock.
func (c *Cache) sweep() {
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*entry)) {
			c.removeElement(el)
			c.stats.Expired++
		}
		el = prev
	}
}

// evictOldest removes the least recently used entry. Caller holds the
// lock.
func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.stats.Evictions++
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
