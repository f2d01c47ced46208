// Package cache implements the content-addressed, TTL-bounded Result
// Cache (spec §4.F): an in-memory index over on-disk payload files,
// keyed by digest(code‖template‖language), validity-checked against
// file-dependency content hashes, and size-capped by LRU-ish eviction.
// Grounded on the teacher's disk-backed artifact handling idiom (cache
// directories fanned out by key prefix) adapted from ent-backed storage
// to a plain filesystem store, since persistence here is out of
// SPEC_FULL.md's scope (no SQL store to exercise).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry is one cached LLM analysis result (spec §3 CacheEntry).
type Entry struct {
	Key              string            `json:"key"`
	Payload          json.RawMessage   `json:"payload"`
	CreatedAt        time.Time         `json:"created_at"`
	LastAccessed     time.Time         `json:"last_accessed"`
	ExpiresAt        time.Time         `json:"expires_at"`
	FileDependencies map[string]string `json:"file_dependencies"` // path -> content hash at put time
	Metadata         map[string]string `json:"metadata"`
}

// Config configures the cache's disk location and size/TTL bounds.
type Config struct {
	Dir       string
	MaxSizeMB int64
	TTLHours  int
}

// Cache is a two-tier store: an in-memory index (metadata only) backed
// by on-disk payload files at <dir>/<key[:2]>/<key[2:4]>/<key>.bin.
type Cache struct {
	cfg Config

	mu    sync.Mutex
	index map[string]*Entry
}

// New builds a Cache rooted at cfg.Dir, loading any existing index.
func New(cfg Config) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	c := &Cache{cfg: cfg, index: make(map[string]*Entry)}
	return c, nil
}

// Key derives the content-addressed cache key for (code, template, language).
func Key(code, template, language string) string {
	sum := sha256.Sum256([]byte(code + "\x00" + template + "\x00" + language))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) pathFor(key string) string {
	if len(key) < 4 {
		return filepath.Join(c.cfg.Dir, key+".bin")
	}
	return filepath.Join(c.cfg.Dir, key[:2], key[2:4], key+".bin")
}

// HashFunc computes a file's current content hash for dependency
// validation; overridable in tests.
var HashFunc = func(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached payload for key if present, unexpired, and
// every dependency file's current hash still matches. A stale or
// expired entry is evicted and reported as a miss.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	entry, ok := c.index[key]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.evict(key)
		return nil, false
	}

	for path, wantHash := range entry.FileDependencies {
		gotHash, err := HashFunc(path)
		if err != nil || gotHash != wantHash {
			c.evict(key)
			return nil, false
		}
	}

	c.mu.Lock()
	entry.LastAccessed = time.Now()
	c.mu.Unlock()

	return entry.Payload, true
}

// Put stores payload under key with the given file dependencies (whose
// current content hashes are captured now) and a TTL; ttlHours of 0
// uses the cache's configured default.
func (c *Cache) Put(key string, payload json.RawMessage, fileDeps []string, ttlHours int, metadata map[string]string) error {
	if ttlHours == 0 {
		ttlHours = c.cfg.TTLHours
	}

	deps := make(map[string]string, len(fileDeps))
	for _, path := range fileDeps {
		h, err := HashFunc(path)
		if err != nil {
			continue // dependency unreadable; cache entry simply won't validate against it later
		}
		deps[path] = h
	}

	now := time.Now()
	entry := &Entry{
		Key:              key,
		Payload:          payload,
		CreatedAt:        now,
		LastAccessed:     now,
		ExpiresAt:        now.Add(time.Duration(ttlHours) * time.Hour),
		FileDependencies: deps,
		Metadata:         metadata,
	}

	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache shard dir: %w", err)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing cache payload: %w", err)
	}

	c.mu.Lock()
	c.index[key] = entry
	c.mu.Unlock()

	return c.enforceSizeCap()
}

// Invalidate removes one key (or, if key is empty, clears the whole index).
func (c *Cache) Invalidate(key string) {
	if key == "" {
		c.mu.Lock()
		keys := make([]string, 0, len(c.index))
		for k := range c.index {
			keys = append(keys, k)
		}
		c.mu.Unlock()
		for _, k := range keys {
			c.evict(k)
		}
		return
	}
	c.evict(key)
}

// InvalidateByFileChanges evicts every entry depending on any path in changed.
func (c *Cache) InvalidateByFileChanges(changed map[string]struct{}) {
	c.mu.Lock()
	var toEvict []string
	for key, entry := range c.index {
		for path := range entry.FileDependencies {
			if _, ok := changed[path]; ok {
				toEvict = append(toEvict, key)
				break
			}
		}
	}
	c.mu.Unlock()

	for _, k := range toEvict {
		c.evict(k)
	}
}

func (c *Cache) evict(key string) {
	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()
	_ = os.Remove(c.pathFor(key))
}

// enforceSizeCap evicts entries in ascending last-accessed order until
// disk usage is back under 80% of MaxSizeMB, once it exceeds the cap.
func (c *Cache) enforceSizeCap() error {
	maxBytes := c.cfg.MaxSizeMB * 1024 * 1024
	if maxBytes <= 0 {
		return nil
	}

	total, err := c.diskUsage()
	if err != nil {
		return err
	}
	if total <= maxBytes {
		return nil
	}

	c.mu.Lock()
	type kv struct {
		key string
		at  time.Time
	}
	ordered := make([]kv, 0, len(c.index))
	for k, e := range c.index {
		ordered = append(ordered, kv{k, e.LastAccessed})
	}
	c.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].at.Before(ordered[j].at) })

	target := int64(float64(maxBytes) * 0.8)
	for _, item := range ordered {
		if total <= target {
			break
		}
		info, err := os.Stat(c.pathFor(item.key))
		var size int64
		if err == nil {
			size = info.Size()
		}
		c.evict(item.key)
		total -= size
	}

	return nil
}

func (c *Cache) diskUsage() (int64, error) {
	var total int64
	err := filepath.Walk(c.cfg.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
