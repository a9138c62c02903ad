package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// Rough linear cost model for a cached listing: a fixed overhead per
// listing plus a per-child estimate covering the entry struct, its name
// and the inode bookkeeping around it.
const (
	listingBaseCost     = 128
	listingPerChildCost = 1000
)

// DirEntryCache is a byte-budgeted LRU of computed directory listings,
// keyed by the parent's inode. Some directories (the on-the-fly mounting
// roots and the cache shards) are never stored here because their contents
// track the evolving cache state; that exemption is decided by the caller.
//
// All access is serialised by a mutex: FUSE callbacks run on many
// goroutines.
type DirEntryCache struct {
	mu       sync.Mutex
	lru      *lru.Cache
	sizes    map[lru.Key]int64
	used     int64
	maxBytes int64
}

// NewDirEntryCache builds a cache bounded to maxBytes (<=0 disables it).
func NewDirEntryCache(maxBytes int64) *DirEntryCache {
	c := &DirEntryCache{
		lru:      lru.New(0),
		sizes:    make(map[lru.Key]int64),
		maxBytes: maxBytes,
	}
	c.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		c.used -= c.sizes[key]
		delete(c.sizes, key)
	}
	return c
}

// Get returns the cached listing for the parent inode, if any.
func (c *DirEntryCache) Get(inode uint64) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(inode)
}

// Set stores a listing of n children, evicting the oldest listings until
// the estimated usage fits the budget again.
func (c *DirEntryCache) Set(inode uint64, entries interface{}, n int) {
	if c.maxBytes <= 0 {
		return
	}
	size := int64(listingBaseCost + n*listingPerChildCost)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lru.Get(inode); ok {
		c.lru.Remove(inode)
	}
	c.lru.Add(inode, entries)
	c.sizes[inode] = size
	c.used += size
	for c.used > c.maxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
}

// Invalidate drops the cached listing for the parent inode.
func (c *DirEntryCache) Invalidate(inode uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(inode)
}

// UsedBytes returns the current estimated memory usage.
func (c *DirEntryCache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}
