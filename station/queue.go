package station

import (
	"sync"
	"time"
)

// Queue is the bounded handoff between the sampling tasks and the publisher.
// A producer waits at most the offer timeout for room, then the reading is
// dropped.
type Queue struct {
	ch      chan Measurement
	timeout time.Duration

	mu      sync.Mutex
	dropped int
}

// NewQueue creates a queue holding up to size readings.
func NewQueue(size int, timeout time.Duration) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Measurement, size), timeout: timeout}
}

// Offer adds m to the queue and reports whether it was accepted.
func (q *Queue) Offer(m Measurement) bool {
	select {
	case q.ch <- m:
		return true
	default:
	}
	if q.timeout > 0 {
		t := time.NewTimer(q.timeout)
		defer t.Stop()
		select {
		case q.ch <- m:
			return true
		case <-t.C:
		}
	}
	q.mu.Lock()
	q.dropped++
	q.mu.Unlock()
	return false
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan Measurement {
	return q.ch
}

// Dropped returns the number of readings rejected because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Cache keeps the latest reading of every sensor kind for the console.
type Cache struct {
	mu     sync.RWMutex
	latest map[Kind]Measurement
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{latest: make(map[Kind]Measurement)}
}

// Put stores m as the latest reading of its kind.
func (c *Cache) Put(m Measurement) {
	c.mu.Lock()
	c.latest[m.Kind] = m
	c.mu.Unlock()
}

// Get returns the latest reading of kind, if any.
func (c *Cache) Get(kind Kind) (Measurement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.latest[kind]
	return m, ok
}
