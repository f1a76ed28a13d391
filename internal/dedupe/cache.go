// ABOUTME: Thread-safe TTL cache mapping uploaded content hashes to document IDs.
// ABOUTME: Used by paper ingestion to answer repeated uploads without calling the backend.

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ContentKey returns the hex SHA-256 of data, the key uploads are cached under.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// cacheEntry stores the document ID, timestamp and list element for a key.
type cacheEntry struct {
	docID     string // empty while the ingest is in flight
	timestamp time.Time
	element   *list.Element
}

// Cache is a TTL-based, size-limited map from content hash to document ID.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // List of keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a new dedupe cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	return newWithClock(ttl, maxSize, time.Now)
}

func newWithClock(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *Cache) live(entry *cacheEntry) bool {
	return c.now().Sub(entry.timestamp) < c.ttl
}

// Lookup returns the document ID recorded for key. ok is false for unknown
// or expired keys and for keys whose ingest has not finished.
func (c *Cache) Lookup(key string) (docID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.seen[key]
	if !found || !c.live(entry) || entry.docID == "" {
		return "", false
	}
	return entry.docID, true
}

// Reserve atomically claims key for a new ingest. If key is already known
// it returns the recorded document ID (empty while that ingest is still in
// flight) and dup=true. Otherwise it records a pending entry and returns
// dup=false; the caller must follow up with Remember or Forget.
func (c *Cache) Reserve(key string) (docID string, dup bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok && c.live(entry) {
		return entry.docID, true
	}

	c.storeLocked(key, "")
	return "", false
}

// Remember records docID for key, refreshing its TTL.
func (c *Cache) Remember(key, docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, docID)
}

// Forget drops key, typically after a failed ingest.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// storeLocked is the internal write. Must be called with mu held.
func (c *Cache) storeLocked(key, docID string) {
	now := c.now()

	// If key already exists, update it and move to back
	if entry, exists := c.seen[key]; exists {
		entry.docID = docID
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	// Evict oldest if at capacity
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{
		docID:     docID,
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.seen {
		if !c.live(entry) {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
