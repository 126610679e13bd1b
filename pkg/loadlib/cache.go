package loadlib

import (
	"sync"
	"unsafe"
)

// CacheStats is a diagnostic snapshot of the ClassCache.
type CacheStats struct {
	// Count is the number of cached classes.
	Count int `json:"count"`
	// ApproxBytes is a rough estimate of the memory held by the cache.
	ApproxBytes int64 `json:"approxBytes"`
}

// ClassCache maps identifiers to resolved classes. Entries are never
// evicted individually; only Clear empties the cache. Loader handles that
// populated the cache are retained until Clear so the loader keeps the
// resolved resources alive.
type ClassCache struct {
	entries *VMap[ClassRef, Class]

	mu      sync.Mutex
	handles []Handle
}

// NewClassCache creates an empty cache.
func NewClassCache() *ClassCache {
	return &ClassCache{
		entries: NewVMap[ClassRef, Class](),
	}
}

// Lookup returns the cached class for ref.
func (c *ClassCache) Lookup(ref ClassRef) (Class, bool) {
	return c.entries.Load(ref)
}

// Contains reports whether ref is cached.
func (c *ClassCache) Contains(ref ClassRef) bool {
	_, ok := c.entries.Load(ref)
	return ok
}

// Insert caches class under ref. An existing entry is kept, which makes
// repeated inserts of the same value a no-op. Returns true if stored.
func (c *ClassCache) Insert(ref ClassRef, class Class) bool {
	if class == nil {
		return false
	}
	return c.entries.SetIfAbsent(ref, class)
}

// Retain keeps h alive until the next Clear.
func (c *ClassCache) Retain(h Handle) {
	if h == nil {
		return
	}
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
}

// Clear empties the cache and cancels every retained handle that is
// still active. Returns the number of entries removed.
func (c *ClassCache) Clear() int {
	n := c.entries.Reset()
	c.mu.Lock()
	handles := c.handles
	c.handles = nil
	c.mu.Unlock()
	for _, h := range handles {
		if h.Active() {
			h.Cancel()
		}
	}
	return n
}

// Stats returns the entry count and an approximate size: identifier
// bytes plus one pointer per entry and per retained handle.
func (c *ClassCache) Stats() CacheStats {
	var st CacheStats
	ptr := int64(unsafe.Sizeof(uintptr(0)))
	c.entries.Range(func(ref ClassRef, _ Class) bool {
		st.Count++
		st.ApproxBytes += int64(len(ref)) + ptr
		return true
	})
	c.mu.Lock()
	st.ApproxBytes += int64(len(c.handles)) * ptr
	c.mu.Unlock()
	return st
}
