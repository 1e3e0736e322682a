package cachesvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

type memoryEntry struct {
	fields    map[string][]byte
	expiresAt time.Time // zero: never
}

// MemoryCache mirrors RedisCache semantics in process. Values are stored JSON encoded so
// readers never share memory with writers.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoryEntry
	gens    map[string]int64 // outlives entries
	now     func() time.Time // mockable
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
		gens:    make(map[string]int64),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key, field string, dst interface{}) (bool, int64, error) {
	c.mu.Lock()
	gen := c.gens[key]
	entry, ok := c.entries[key]
	if ok && !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	var raw []byte
	if ok {
		raw, ok = entry.fields[field]
	}
	c.mu.Unlock()

	if !ok {
		return false, gen, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, gen, errors.Wrap(err, "decoding "+key+" "+field)
	}
	return true, gen, nil
}

func (c *MemoryCache) Set(_ context.Context, key, field string, value interface{}, gen int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding "+key+" "+field)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return nil // invalidated since gen was read
	}
	entry, ok := c.entries[key]
	if !ok {
		entry = &memoryEntry{fields: make(map[string][]byte)}
		c.entries[key] = entry
	}
	entry.fields[field] = raw
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		c.gens[key]++
	}
	return nil
}

// Len returns the number of live keys.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
