// Package streamcache persists detected stream formats so repeat playback of
// the same URL skips the HEAD/ffprobe probe. Entries are keyed by a hash of
// the URL and expire after a configurable TTL.
package streamcache

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/renameio/v2"

	"github.com/aosaki/dlnacast/tool"
	"github.com/aosaki/dlnacast/types"
)

const cacheFileName = "stream_format_cache.json"

type Cache struct {
	cachePath string
	ttl       time.Duration
	mu        sync.Mutex
	entries   map[string]types.StreamFormatEntry
}

// New opens the cache under dataDir. A missing or corrupt cache file starts
// empty and is never fatal.
func New(dataDir string, ttl time.Duration) *Cache {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		tool.DefaultLogger.Errorf("Failed to create data directory %s: %v", dataDir, err)
	}
	c := &Cache{
		cachePath: filepath.Join(dataDir, cacheFileName),
		ttl:       ttl,
		entries:   map[string]types.StreamFormatEntry{},
	}
	c.mu.Lock()
	c.reload()
	c.mu.Unlock()
	return c
}

// reload refreshes the in-memory map from disk. The file is the source of
// truth because independent workers may share it. Callers hold c.mu.
func (c *Cache) reload() {
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			tool.DefaultLogger.Warnf("Failed to read stream cache: %v", err)
		}
		c.entries = map[string]types.StreamFormatEntry{}
		return
	}
	entries := map[string]types.StreamFormatEntry{}
	if err := sonic.Unmarshal(data, &entries); err != nil {
		tool.DefaultLogger.Warnf("Failed to parse stream cache, starting empty: %v", err)
		c.entries = map[string]types.StreamFormatEntry{}
		return
	}
	c.entries = entries
}

// persist writes the map atomically. Callers hold c.mu.
func (c *Cache) persist() error {
	data, err := sonic.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(c.cachePath, data, 0o644); err != nil {
		tool.DefaultLogger.Errorf("Failed to save stream cache: %v", err)
		return err
	}
	return nil
}

func (c *Cache) expired(entry types.StreamFormatEntry) bool {
	return time.Since(time.Unix(entry.Timestamp, 0)) > c.ttl
}

// Get returns the cached entry for a URL, or nil on a miss. Expired entries
// count as misses; they are dropped lazily on the next Set.
func (c *Cache) Get(url string) *types.StreamFormatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload()
	entry, ok := c.entries[tool.StreamCacheKey(url)]
	if !ok || c.expired(entry) {
		return nil
	}
	return &entry
}

// Set records a detection result and sweeps out every expired entry before
// saving, so the file never grows without bound.
func (c *Cache) Set(url, mimeType, method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload()
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
		}
	}
	c.entries[tool.StreamCacheKey(url)] = types.StreamFormatEntry{
		URL:             url,
		MimeType:        mimeType,
		DetectionMethod: method,
		Timestamp:       time.Now().Unix(),
	}
	return c.persist()
}

// Entries returns every live cached entry keyed by URL hash.
func (c *Cache) Entries() map[string]types.StreamFormatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload()
	out := make(map[string]types.StreamFormatEntry, len(c.entries))
	for key, entry := range c.entries {
		if !c.expired(entry) {
			out[key] = entry
		}
	}
	return out
}
