package analysis

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

type cacheEntry struct {
	fingerprint uint64
	info        *StaticInfo
}

// Cache memoizes another Analyzer per file name. An entry is tied to the
// fingerprint of the content it was computed from; different content
// replaces the entry rather than reusing it. Parse failures are not cached.
type Cache struct {
	analyzer Analyzer

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache wraps analyzer.
func NewCache(analyzer Analyzer) *Cache {
	return &Cache{analyzer: analyzer, entries: map[string]cacheEntry{}}
}

// Analyze returns the cached StaticInfo for filename when src is unchanged,
// and analyzes it otherwise.
func (c *Cache) Analyze(src []byte, filename string) (*StaticInfo, error) {
	fp := xxhash.Sum64(src)

	c.mu.Lock()
	e, ok := c.entries[filename]
	c.mu.Unlock()
	if ok && e.fingerprint == fp {
		return e.info, nil
	}

	info, err := c.analyzer.Analyze(src, filename)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[filename] = cacheEntry{fingerprint: fp, info: info}
	c.mu.Unlock()
	return info, nil
}

// Len reports the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
