package filter

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded LRU of compiled filters keyed by their canonical
// JSON, so a REST façade or query pipeline that re-parses the same
// filter body on every request compiles it once (spec §4.2's "resolve
// field paths once at filter compile time" taken to the request level).
type Cache struct {
	lru *lru.Cache[string, *CompiledFilter]
}

// NewCache builds a filter cache holding up to size compiled filters.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, *CompiledFilter](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// GetOrCompile returns a cached CompiledFilter for n if present,
// otherwise compiles, caches, and returns it.
func (c *Cache) GetOrCompile(n Node) (*CompiledFilter, error) {
	key := canonicalJSON(n)
	if cf, ok := c.lru.Get(key); ok {
		return cf, nil
	}
	cf, err := Compile(n)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, cf)
	return cf, nil
}

// Len reports the number of cached entries, mostly useful for tests.
func (c *Cache) Len() int { return c.lru.Len() }
