package local

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// entry holds a cached string value with an optional expiry.
type entry struct {
	data     string
	expireAt time.Time
	noExpiry bool
}

func (e *entry) expired() bool {
	return !e.noExpiry && time.Now().After(e.expireAt)
}

// zEntry is one member of a sorted set.
type zEntry struct {
	member string
	score  float64
}

// zset keeps entries sorted by score descending.
type zset struct {
	mu      sync.Mutex
	entries []zEntry
}

// LocalCache is an in-process cache implementing the Cache interface.
// Expired KV entries are dropped lazily on access.
type LocalCache struct {
	kv    sync.Map // key → *entry
	zsets sync.Map // key → *zset
}

// NewCache creates a LocalCache.
func NewCache() (*LocalCache, error) {
	return &LocalCache{}, nil
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.kv.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	e := v.(*entry)
	if e.expired() {
		c.kv.Delete(key)
		return "", ErrNotFound
	}
	return e.data, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := &entry{data: value}
	if ttl > 0 {
		e.expireAt = time.Now().Add(ttl)
	} else {
		e.noExpiry = true
	}
	c.kv.Store(key, e)
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.kv.Delete(k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	v, ok := c.kv.Load(key)
	if !ok {
		return false, nil
	}
	e := v.(*entry)
	if e.expired() {
		c.kv.Delete(key)
		return false, nil
	}
	return true, nil
}

// ---- ZSet ----

func (c *LocalCache) getOrCreateZSet(key string) *zset {
	v, _ := c.zsets.LoadOrStore(key, &zset{})
	return v.(*zset)
}

func (c *LocalCache) ZIncrBy(_ context.Context, key string, incr float64, member string) (float64, error) {
	z := c.getOrCreateZSet(key)
	z.mu.Lock()
	defer z.mu.Unlock()
	for i, e := range z.entries {
		if e.member == member {
			z.entries[i].score += incr
			score := z.entries[i].score
			sort.Slice(z.entries, func(a, b int) bool { return z.entries[a].score > z.entries[b].score })
			return score, nil
		}
	}
	z.entries = append(z.entries, zEntry{member: member, score: incr})
	sort.Slice(z.entries, func(a, b int) bool { return z.entries[a].score > z.entries[b].score })
	return incr, nil
}

func (c *LocalCache) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	z := c.getOrCreateZSet(key)
	z.mu.Lock()
	defer z.mu.Unlock()
	n := int64(len(z.entries))
	if start >= n {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	result := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		result = append(result, z.entries[i].member)
	}
	return result, nil
}

func (c *LocalCache) ZScore(_ context.Context, key, member string) (float64, error) {
	z := c.getOrCreateZSet(key)
	z.mu.Lock()
	defer z.mu.Unlock()
	for _, e := range z.entries {
		if e.member == member {
			return e.score, nil
		}
	}
	return 0, ErrNotFound
}
