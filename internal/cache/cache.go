// Package cache implements the search cache (C6): a fingerprint-keyed LRU
// with TTL expiry and file-/language-scoped invalidation sitting in front
// of the hybrid retrieval pipeline, grounded on the teacher's
// hashicorp/golang-lru usage in internal/embed/cached.go.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
)

// Admission thresholds (spec §4.6).
const (
	MinQueryChars  = 3
	MaxResultCount = 100

	// DefaultMaxSize is the LRU capacity when none is configured.
	DefaultMaxSize = 500
	// DefaultTTL is the entry lifetime when none is configured.
	DefaultTTL = 5 * time.Minute

	sweepInterval = 30 * time.Second
)

// Fingerprint is the 128-bit key identifying a cacheable query shape.
type Fingerprint [16]byte

// ComputeFingerprint computes the 128-bit digest of the normalized query tuple
// spec §4.6 defines: lower-trimmed text, language, chunkType, filePath,
// limit, threshold.
func ComputeFingerprint(text, language, chunkType, filePath string, limit int, threshold float64) Fingerprint {
	norm := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(text)),
		language,
		chunkType,
		filePath,
		strconv.Itoa(limit),
		strconv.FormatFloat(threshold, 'f', -1, 64),
	}, "\x00")

	sum := sha256.Sum256([]byte(norm))
	var fp Fingerprint
	copy(fp[:], sum[:16])
	return fp
}

// Stats reports the cache's running counters (spec §4.6).
type Stats struct {
	Hits         int64
	Misses       int64
	Size         int
	MemEstimate  int64
}

// HitRate returns hits/(hits+misses), or 0 when no lookups have occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the search cache capability (C6).
type Cache struct {
	maxSize int
	ttl     time.Duration

	mu    sync.Mutex
	lru   *lru.Cache[Fingerprint, *retrieval.CacheEntry]

	hits   atomic.Int64
	misses atomic.Int64
	memEst atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a search cache with the given LRU capacity and entry TTL,
// applying spec-documented defaults for non-positive values.
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	l, _ := lru.NewWithEvict[Fingerprint, *retrieval.CacheEntry](maxSize, func(_ Fingerprint, entry *retrieval.CacheEntry) {
		c.memEst.Add(-estimateSize(entry))
	})
	c.lru = l

	go c.sweepLoop()
	return c
}

// Get returns a deep copy of the cached results for fp, lazily expiring the
// entry if its TTL has elapsed (spec §4.6 "gets also lazy-expire").
func (c *Cache) Get(fp Fingerprint) ([]retrieval.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(fp)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.expired(entry) {
		c.lru.Remove(fp)
		c.misses.Add(1)
		return nil, false
	}

	entry.LastAccess = time.Now()
	c.hits.Add(1)
	return retrieval.CloneResults(entry.Results), true
}

// Admit stores results under fp if the admission policy allows it (spec
// §4.6). Returns false when the result set was rejected.
func (c *Cache) Admit(fp Fingerprint, results []retrieval.SearchResult, queryText string, meta retrieval.QueryMetadata) bool {
	if len(strings.TrimSpace(queryText)) < MinQueryChars {
		return false
	}
	if len(results) == 0 {
		return false
	}
	if len(results) > MaxResultCount {
		return false
	}
	if meta.FilePath != "" {
		return false
	}

	now := time.Now()
	entry := &retrieval.CacheEntry{
		QueryFingerprint: fingerprintToUint64(fp),
		Results:          retrieval.CloneResults(results),
		CreatedAt:        now,
		LastAccess:       now,
		QueryMetadata:    meta,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(fp, entry)
	c.memEst.Add(estimateSize(entry))
	return true
}

// InvalidateFile evicts entries whose query was scoped to path, or whose
// cached results reference a chunk from path (spec §4.6, invariant I5).
func (c *Cache) InvalidateFile(path string) int {
	return c.invalidateWhere(func(e *retrieval.CacheEntry) bool {
		if e.QueryMetadata.FilePath == path {
			return true
		}
		for _, r := range e.Results {
			if r.Chunk != nil && r.Chunk.FilePath == path {
				return true
			}
		}
		return false
	})
}

// InvalidateLanguage evicts entries whose query was scoped to lang.
func (c *Cache) InvalidateLanguage(lang string) int {
	return c.invalidateWhere(func(e *retrieval.CacheEntry) bool {
		return e.QueryMetadata.Language == lang
	})
}

func (c *Cache) invalidateWhere(pred func(*retrieval.CacheEntry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, fp := range c.lru.Keys() {
		entry, ok := c.lru.Peek(fp)
		if !ok {
			continue
		}
		if pred(entry) {
			c.lru.Remove(fp)
			removed++
		}
	}
	return removed
}

// Clear drops every entry and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()

	c.hits.Store(0)
	c.misses.Store(0)
	c.memEst.Store(0)
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := c.lru.Len()
	c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Size:        size,
		MemEstimate: c.memEst.Load(),
	}
}

// Close stops the periodic TTL sweep goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Cache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, fp := range c.lru.Keys() {
		entry, ok := c.lru.Peek(fp)
		if !ok {
			continue
		}
		if c.expired(entry) {
			c.lru.Remove(fp)
		}
	}
}

func (c *Cache) expired(entry *retrieval.CacheEntry) bool {
	return time.Since(entry.CreatedAt) > c.ttl
}

func fingerprintToUint64(fp Fingerprint) uint64 {
	return binary.BigEndian.Uint64(fp[:8])
}

// estimateSize is a coarse memory estimate for counters only, never used
// for eviction decisions (the LRU handles capacity by entry count).
func estimateSize(entry *retrieval.CacheEntry) int64 {
	size := int64(64) // struct overhead, createdAt/lastAccess, etc.
	for _, r := range entry.Results {
		size += int64(len(r.Snippet) + len(r.Context) + len(r.ID))
		if r.Chunk != nil {
			size += int64(len(r.Chunk.Content))
		}
	}
	return size
}
