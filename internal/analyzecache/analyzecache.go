// Package analyzecache is a memoizing front door over cQASM analysis:
// concurrent requests for the same (dialect, version ceiling, file name,
// source) are deduplicated with golang.org/x/sync/singleflight, and
// completed results are kept keyed by a blake2b digest of the inputs so a
// repeat call never re-walks the syntactic tree.
package analyzecache

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"cqasm"
	"cqasm/internal/analyzer"
	"cqasm/internal/dialect"
	"cqasm/internal/serialize"
	"cqasm/internal/version"
)

// Cache memoizes AnalyzeString results. The zero value is not usable; use
// New.
type Cache struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[[32]byte]*analyzer.AnalysisResult
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[[32]byte]*analyzer.AnalysisResult)}
}

// Analyze returns the memoized AnalysisResult for this exact input if one
// exists, otherwise runs the analysis exactly once even if called
// concurrently from multiple goroutines with the same arguments.
func (c *Cache) Analyze(d dialect.Dialect, maxVersion version.Version, src, fileName string) *analyzer.AnalysisResult {
	if fileName == "" {
		fileName = cqasm.DefaultFileName
	}
	key := digestKey(d, maxVersion, src, fileName)

	c.mu.RLock()
	if r, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return r
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do(string(key[:]), func() (interface{}, error) {
		result := cqasm.AnalyzeString(d, maxVersion, src, fileName)
		c.mu.Lock()
		c.entries[key] = result
		c.mu.Unlock()
		return result, nil
	})
	return v.(*analyzer.AnalysisResult)
}

// Forget drops the memoized result for exactly this (dialect, version
// ceiling, source, file name) combination, so the next Analyze call with
// the same inputs recomputes. Results for other dialects or ceilings stay.
func (c *Cache) Forget(d dialect.Dialect, maxVersion version.Version, src, fileName string) {
	if fileName == "" {
		fileName = cqasm.DefaultFileName
	}
	key := digestKey(d, maxVersion, src, fileName)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports how many distinct results are currently memoized.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func digestKey(d dialect.Dialect, maxVersion version.Version, src, fileName string) [32]byte {
	header := fmt.Sprintf("%s\x00%s\x00%s\x00", d, maxVersion, fileName)
	return serialize.Digest([]byte(header + src))
}
