package producer

import (
	"sync"
	"time"
)

// LastValue is the most recent value a producer emitted for one sensor.
type LastValue struct {
	Value     float64
	Timestamp time.Time
}

// LastValueCache is a bounded, thread-safe LRU map of sensor ID to the last
// value a single producer emitted. It is owned by exactly one producer and
// never persisted; on a miss the producer rebuilds the entry from the sink.
type LastValueCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	sensorID string
	value    LastValue
	prev     *entry
	next     *entry
}

// NewLastValueCache creates an empty cache holding at most maxEntries sensors.
// A non-positive size means unbounded.
func NewLastValueCache(maxEntries int) *LastValueCache {
	return &LastValueCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// Get returns the cached value for a sensor and marks it recently used.
func (c *LastValueCache) Get(sensorID string) (LastValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sensorID]
	if !ok {
		return LastValue{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Put stores the value for a sensor, evicting the least recently used entry
// when the cache is full.
func (c *LastValueCache) Put(sensorID string, v LastValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[sensorID]; ok {
		e.value = v
		c.moveToFront(e)
		return
	}

	e := &entry{sensorID: sensorID, value: v}
	c.entries[sensorID] = e
	c.addToFront(e)

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len returns the number of cached sensors.
func (c *LastValueCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns a copy of every entry.
func (c *LastValueCache) Snapshot() map[string]LastValue {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]LastValue, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.value
	}
	return out
}

// Reset drops every entry.
func (c *LastValueCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
}

func (c *LastValueCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *LastValueCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LastValueCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *LastValueCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.sensorID)
	c.remove(c.tail)
}
