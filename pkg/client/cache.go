package client

import (
	"container/list"
	"sync"

	"github.com/JPLMLIA/pdsc-go/pkg/metadata"
	"github.com/JPLMLIA/pdsc-go/pkg/query"
)

// indexCache caches opened per-instrument indexes keyed by directory path,
// with LRU eviction and a configurable cap (spec.md §5: "cached by the
// server process keyed on directory path; eviction is LRU with a
// configurable cap. A read lock per cache entry prevents concurrent reload
// during invalidation"), the same shape as the teacher's ChartCache
// (pkg/v1/cache.go) adapted from a memory-budget eviction rule to a simple
// entry-count cap.
type indexCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry
	lru      *list.List
}

type cacheEntry struct {
	path    string
	idx     *query.Index
	meta    *metadata.Store
	mu      sync.RWMutex
	element *list.Element
}

func newIndexCache(capacity int) *indexCache {
	return &indexCache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// handle is a caller's checked-out reference to a cached index. Release
// must be called when the caller is done; while held, Acquire may proceed
// for other entries but eviction of this entry blocks until Release.
type handle struct {
	entry *cacheEntry
}

func (h *handle) Index() *query.Index        { return h.entry.idx }
func (h *handle) Metadata() *metadata.Store  { return h.entry.meta }
func (h *handle) Release()                   { h.entry.mu.RUnlock() }

// loader opens the artifacts for one instrument directory.
type loader func() (*query.Index, *metadata.Store, error)

// acquire returns a read-locked handle to the index at path, opening it via
// load on a cache miss.
func (c *indexCache) acquire(path string, load loader) (*handle, error) {
	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		c.lru.MoveToFront(e.element)
		c.mu.Unlock()
		e.mu.RLock()
		return &handle{entry: e}, nil
	}
	c.mu.Unlock()

	idx, meta, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok {
		// Lost a race with a concurrent loader for the same path; use the
		// winner's entry and let ours be garbage collected.
		c.lru.MoveToFront(e.element)
		c.mu.Unlock()
		e.mu.RLock()
		return &handle{entry: e}, nil
	}

	e := &cacheEntry{path: path, idx: idx, meta: meta}
	e.element = c.lru.PushFront(path)
	c.entries[path] = e
	evicted := c.popEvictionsLocked(e.element)
	c.mu.Unlock()

	// Block on each evicted entry's write lock (waiting for any in-flight
	// readers to Release) after releasing c.mu, so a slow reader on one
	// entry can't stall unrelated acquire calls cache-wide (spec.md §5:
	// "query implementations should not hold locks across [blocking]
	// boundaries").
	for _, ev := range evicted {
		ev.mu.Lock()
		ev.idx.Segs.Close()
		ev.meta.Close()
		ev.mu.Unlock()
	}

	e.mu.RLock()
	return &handle{entry: e}, nil
}

// popEvictionsLocked removes least-recently-used entries from the index and
// LRU list until the cache is back at capacity, never evicting keep (the
// entry the caller is about to return), and returns the removed entries for
// the caller to close after releasing c.mu. Called with c.mu held.
func (c *indexCache) popEvictionsLocked(keep *list.Element) []*cacheEntry {
	if c.capacity <= 0 {
		return nil
	}
	var evicted []*cacheEntry
	for len(c.entries) > c.capacity {
		back := c.lru.Back()
		if back == nil || back == keep {
			break
		}
		path := back.Value.(string)
		evicted = append(evicted, c.entries[path])
		delete(c.entries, path)
		c.lru.Remove(back)
	}
	return evicted
}
