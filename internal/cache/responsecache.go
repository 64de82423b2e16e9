package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/Laisky/zap"

	"github.com/Laisky/llm-gateway/common/logger"
)

// DefaultCapacity and DefaultTTL bound the response cache: at most 100
// fingerprints, each live for ten minutes.
const (
	DefaultCapacity = 100
	DefaultTTL      = 10 * time.Minute
)

// RecordedStream is one pre-materialized completion, recorded as the
// sequence of raw byte chunks the upstream produced (an SSE stream's frames,
// or a single chunk for a non-streaming response).
type RecordedStream [][]byte

type entry struct {
	key       uint64
	streams   []RecordedStream
	expiresAt time.Time
	elem      *list.Element
}

// ResponseCache maps a request fingerprint to zero or more pre-recorded
// completions, each consumable exactly once: a bounded, TTL-expiring,
// LRU-evicting map guarded by a single mutex (the request volume this
// serves does not warrant a sharded or lock-free structure).
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[uint64]*entry
	order    *list.List // front = most recently touched
}

// NewResponseCache constructs a cache with the given capacity (fingerprint
// count) and per-entry TTL. Zero values fall back to the defaults above.
func NewResponseCache(capacity int, ttl time.Duration) *ResponseCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[uint64]*entry),
		order:    list.New(),
	}
}

// Pop returns and removes one recorded stream for fingerprint, if any is
// present and unexpired. If the entry's stream list becomes empty, the
// entry itself is removed, matching CachedResponse::pop's
// pop-the-backing-Vec semantics.
func (c *ResponseCache) Pop(fingerprint uint64) (RecordedStream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		return nil, false
	}
	n := len(e.streams)
	if n == 0 {
		c.removeLocked(e)
		return nil, false
	}
	stream := e.streams[n-1]
	e.streams = e.streams[:n-1]
	if len(e.streams) == 0 {
		c.removeLocked(e)
	} else {
		c.order.MoveToFront(e.elem)
	}
	return stream, true
}

// Push installs a newly recorded stream under fingerprint, evicting the
// least-recently-touched fingerprint if the cache is at capacity and this
// fingerprint is new.
func (c *ResponseCache) Push(fingerprint uint64, stream RecordedStream) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fingerprint]; ok {
		e.streams = append(e.streams, stream)
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(e.elem)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	e := &entry{
		key:       fingerprint,
		streams:   []RecordedStream{stream},
		expiresAt: time.Now().Add(c.ttl),
	}
	e.elem = c.order.PushFront(e)
	c.entries[fingerprint] = e
}

// Len reports the number of distinct cached fingerprints.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) evictOldestLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.removeLocked(back.Value.(*entry))
	logger.Logger.Debug("response cache capacity eviction", zap.Int("capacity", c.capacity))
}

func (c *ResponseCache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}
