package web

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"vault-backup/internal/vb"
)

// listingCache keeps flat snapshot listings by snapshot id. Snapshots never
// change, so entries are only evicted for space. Names such as "latest"
// resolve to a different snapshot over time and are not cached.
type listingCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func newListingCache(max int) *listingCache {
	return &listingCache{lru: lru.New(max)}
}

// cacheable reports whether id names one snapshot for good: at least 8
// lowercase hex characters, as restic prints ids.
func cacheable(id string) bool {
	if len(id) < 8 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (c *listingCache) get(id string) ([]vb.Entry, bool) {
	if !cacheable(id) {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	return v.([]vb.Entry), true
}

func (c *listingCache) add(id string, entries []vb.Entry) {
	if !cacheable(id) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(id, entries)
}

func (c *listingCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
