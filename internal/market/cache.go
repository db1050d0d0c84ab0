package market

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache is a TTL key/value cache held in memory and, when dir is set,
// mirrored to one JSON file per key so it survives restarts.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu  sync.RWMutex
	mem map[string]CacheEntry
}

// CacheEntry represents a cached item
type CacheEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCache creates a cache. An empty dir keeps entries in memory only.
func NewCache(dir string, ttl time.Duration) *Cache {
	if dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return &Cache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
		mem: make(map[string]CacheEntry),
	}
}

func (c *Cache) expired(e CacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.Timestamp) > c.ttl
}

// Get retrieves an item from cache
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()

	if !ok && c.dir != "" {
		e, ok = c.readFile(key)
		if ok {
			c.mu.Lock()
			c.mem[key] = e
			c.mu.Unlock()
		}
	}
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		_ = c.Delete(key)
		return nil, false
	}
	return e.Data, true
}

// Set stores an item in cache
func (c *Cache) Set(key string, data []byte) error {
	e := CacheEntry{Key: key, Data: data, Timestamp: c.now()}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(c.filePath(key), b, 0o644)
}

// Delete removes an item from cache
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	if err := os.Remove(c.filePath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CleanupExpired removes expired entries from memory and disk
func (c *Cache) CleanupExpired() error {
	c.mu.Lock()
	for k, e := range c.mem {
		if c.expired(e) {
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		p := filepath.Join(c.dir, entry.Name())
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var e CacheEntry
		if err := json.Unmarshal(b, &e); err != nil || c.expired(e) {
			_ = os.Remove(p)
		}
	}
	return nil
}

// GetOrFetch retrieves from cache or fetches using fetchFn, storing the result
func (c *Cache) GetOrFetch(key string, fetchFn func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}
	data, err := fetchFn()
	if err != nil {
		return nil, err
	}
	// a cache write failure only costs a lookup next time
	_ = c.Set(key, data)
	return data, nil
}

func (c *Cache) readFile(key string) (CacheEntry, bool) {
	b, err := os.ReadFile(c.filePath(key))
	if err != nil {
		return CacheEntry{}, false
	}
	var e CacheEntry
	if err := json.Unmarshal(b, &e); err != nil || e.Key != key {
		return CacheEntry{}, false
	}
	return e, true
}

func (c *Cache) filePath(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%x.json", md5.Sum([]byte(key))))
}
