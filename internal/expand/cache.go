package expand

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vk/snipweave/internal/config"
	"github.com/vk/snipweave/internal/vars"
)

// maxEntryBytes caps how large one cached result may be. Writes above
// the cap are rejected with a cache error.
const maxEntryBytes = 1 << 20

type cacheEntry struct {
	key    string
	result *Result
	size   int
	// refs records the reference strings the result depends on, for
	// inspection and debugging.
	refs       []string
	createdAt  time.Time
	lastAccess time.Time
	hitCount   int64
}

// Cache memoizes expansion results. Reads never remove entries:
// expired entries count as misses and stay until a write over
// capacity evicts them, or a write to the same key refreshes them.
// Safe for concurrent use; read-modify-write per key is serialized.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
	policy  string

	now func() time.Time
}

// NewCache builds a Cache from settings.
func NewCache(cfg config.CacheSettings) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
		policy:  cfg.Policy,
		now:     time.Now,
	}
}

// Get returns the cached result for key. A hit bumps the entry's hit
// count and access time.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if c.ttl > 0 && now.Sub(e.createdAt) >= c.ttl {
		return nil, false
	}
	e.hitCount++
	e.lastAccess = now
	return e.result, true
}

// Put stores a result under key. Writing an existing key refreshes
// the entry in place; a new key over capacity first evicts exactly
// one entry by the configured policy.
func (c *Cache) Put(key string, r *Result, refs []string) error {
	size := len(r.Output)
	for _, n := range r.Resolved {
		size += len(n.Content)
	}
	if size > maxEntryBytes {
		return fmt.Errorf("result for %s is %d bytes, over the %d byte cache limit", key, size, maxEntryBytes)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.result, e.size, e.refs = r, size, refs
		e.createdAt, e.lastAccess = now, now
		e.hitCount = 0
		return nil
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evict()
	}
	c.entries[key] = &cacheEntry{
		key:        key,
		result:     r,
		size:       size,
		refs:       refs,
		createdAt:  now,
		lastAccess: now,
	}
	return nil
}

// evict removes one entry by policy. Ties on LFU hit counts go to the
// least recently accessed. Caller holds the lock.
func (c *Cache) evict() {
	var victim *cacheEntry
	for _, e := range c.entries {
		if victim == nil {
			victim = e
			continue
		}
		switch c.policy {
		case config.PolicyLFU:
			if e.hitCount < victim.hitCount ||
				(e.hitCount == victim.hitCount && e.lastAccess.Before(victim.lastAccess)) {
				victim = e
			}
		case config.PolicyFIFO:
			if e.createdAt.Before(victim.createdAt) {
				victim = e
			}
		default: // LRU
			if e.lastAccess.Before(victim.lastAccess) {
				victim = e
			}
		}
	}
	if victim != nil {
		delete(c.entries, victim.key)
		CacheEventsTotal.WithLabelValues(CacheEventEvict).Inc()
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Len reports the stored entry count, expired entries included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey derives the key for a snippet expanded in a given context:
// the identifier plus a hash of depth, explicit values, mode, and the
// performance settings that change output.
func cacheKey(id string, depth int, values map[string]string, mode vars.Mode, s config.Settings) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%d|%d|%d|", depth, mode, s.MaxDepth, s.MaxParallel, s.Timeout)
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(h, "%s=%s|", k, values[k])
	}
	return id + "@" + strconv.FormatUint(h.Sum64(), 16)
}
