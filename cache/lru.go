package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded in-memory Cache evicting the least recently used
// content first.
type LRU struct {
	inner *lru.Cache[string, []byte]
}

// Interface compliance.
var _ Cache = (*LRU)(nil)

// NewLRU creates an LRU cache holding at most maxEntries items.
func NewLRU(maxEntries int) (*LRU, error) {
	inner, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &LRU{inner: inner}, nil
}

// Get retrieves content by key.
func (c *LRU) Get(key string) ([]byte, bool) {
	return c.inner.Get(key)
}

// Put stores content under key.
func (c *LRU) Put(key string, content []byte) {
	c.inner.Add(key, content)
}

// Len returns the number of cached items.
func (c *LRU) Len() int {
	return c.inner.Len()
}
