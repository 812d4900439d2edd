// Package buffer implements the Cache and PageManager: an address-keyed
// page table with LRU eviction, and the arbiter between that cache, the
// Freelist, and a device.Device.
//
// The Cache/PageManager pair is grounded on a pager's buffer pool
// (a map-plus-intrusive-LRU-list cache with pin counts and a dirty
// scan), generalized with a per-page latch so the cache purger can
// try-lock-and-skip a page under concurrent eviction instead of
// blocking on it.
package buffer

import (
	"sync"

	"github.com/latticedb/bltree/storage/page"
)

type entry struct {
	pg         *page.Page
	latch      *latch
	prev, next *entry
}

// Cache is an address-keyed page table with a total LRU ordering.
// Mutation (bucket/list structure) is serialized by one mutex; a cache
// hit does not hold that mutex while the caller reads/writes page bytes.
// Each entry also owns a latch, which only PurgeCandidates takes
// (try-only); page content is not otherwise guarded by it.
type Cache struct {
	mu       sync.Mutex
	capacity uint64 // bytes; 0 = unlimited
	pageSize uint32
	entries  map[int64]*entry
	head     *entry // most recently used
	tail     *entry // least recently used (first eviction candidate)

	hits, misses uint64
}

// NewCache creates a Cache with the given byte capacity (0 = unlimited).
func NewCache(capacityBytes uint64, pageSize uint32) *Cache {
	return &Cache{
		capacity: capacityBytes,
		pageSize: pageSize,
		entries:  make(map[int64]*entry),
	}
}

// Get returns the cached page at addr, moving it to the LRU head on hit.
func (c *Cache) Get(addr int64) (*page.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.moveToFront(e)
	return e.pg, true
}

// Put inserts pg into the bucket table and the LRU head. It never
// evicts; eviction happens only through PurgeCandidates (via
// PageManager.PurgeCache), which AllocPage and FetchPage do not call.
func (c *Cache) Put(pg *page.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, exists := c.entries[pg.Addr]; exists {
		e.pg = pg
		c.moveToFront(e)
		return
	}
	e := &entry{pg: pg, latch: &latch{}}
	c.entries[pg.Addr] = e
	c.pushFront(e)
}

// Del removes addr from both the bucket table and the LRU list.
func (c *Cache) Del(addr int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[addr]
	if !ok {
		return
	}
	c.unlink(e)
	delete(c.entries, addr)
}

// latchFor returns the latch guarding addr's content, creating the
// backing entry on first use is not this method's job — callers only ask
// for a latch on pages already Put into the cache.
func (c *Cache) latchFor(addr int64) *latch {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[addr]; ok {
		return e.latch
	}
	return nil
}

// IsCacheFull compares current_elements*page_size to capacity, per
// 
func (c *Cache) IsCacheFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity == 0 {
		return false
	}
	return uint64(len(c.entries))*uint64(c.pageSize) >= c.capacity
}

func (c *Cache) CurrentElements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Capacity() uint64 { return c.capacity }

func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// PurgeCandidates scans from the LRU tail, collecting eviction candidates
// up to the overage (current - capacity/page_size), skipping pages that
// are pinned, of type btree-root, or whose latch can't be acquired
// try-only. ignoreAddr is the PageManager's pinned
// last-used blob page. Dirty candidates are appended to dirty; clean ones
// to clean. Both result pages are removed from the cache by this call.
func (c *Cache) PurgeCandidates(ignoreAddr int64, dirty, clean *[]*page.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	overage := 0
	if c.capacity > 0 {
		limit := int(c.capacity / uint64(c.pageSize))
		if len(c.entries) > limit {
			overage = len(c.entries) - limit
		}
	} else {
		return
	}

	for e := c.tail; e != nil && overage > 0; {
		prev := e.prev
		if e.pg.Addr == ignoreAddr || e.pg.IsRoot() || e.pg.PinCount() > 0 {
			e = prev
			continue
		}
		if !e.latch.TryLock() {
			e = prev
			continue
		}
		e.latch.Unlock(LockWrite)

		c.unlink(e)
		delete(c.entries, e.pg.Addr)
		if e.pg.Dirty() {
			*dirty = append(*dirty, e.pg)
		} else {
			*clean = append(*clean, e.pg)
		}
		overage--
		e = prev
	}
}

// PurgeIf removes every page for which predicate returns true, used at
// environment close.
func (c *Cache) PurgeIf(predicate func(*page.Page) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, e := range c.entries {
		if predicate(e.pg) {
			c.unlink(e)
			delete(c.entries, addr)
		}
	}
}

// All returns every cached page, used by flush-all at close.
func (c *Cache) All() []*page.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*page.Page, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.pg)
	}
	return out
}

func (c *Cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlink(e *entry) {
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
	e.prev, e.next = nil, nil
}

func (c *Cache) moveToFront(e *entry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}
