package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryEntries bounds the in-process layer in front of the disk store.
const memoryEntries = 128

// Entry is a cached model response.
type Entry struct {
	Key       string    `json:"key"`
	Model     string    `json:"model,omitempty"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
	TTL       int       `json:"ttl"`
}

// Cache stores model responses on disk with a TTL, fronted by an LRU.
type Cache struct {
	dir        string
	ttlSeconds int
	enabled    bool
	mem        *lru.Cache[string, Entry]
}

// New creates a Cache. If dir is empty, the default cache directory is used.
// A disabled cache misses every lookup and drops every write.
func New(enabled bool, dir string, ttlSeconds int) (*Cache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if !enabled {
		return &Cache{dir: dir, enabled: false}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	mem, err := lru.New[string, Entry](memoryEntries)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &Cache{
		dir:        dir,
		ttlSeconds: ttlSeconds,
		enabled:    true,
		mem:        mem,
	}, nil
}

// Get retrieves a cached response by key. Returns ("", false) on miss.
func (c *Cache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	hashed := HashKey(key)
	if entry, ok := c.mem.Get(hashed); ok {
		if !c.expired(entry) {
			return entry.Response, true
		}
		c.mem.Remove(hashed)
	}

	path := c.entryPath(hashed)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	if c.expired(entry) {
		os.Remove(path)
		return "", false
	}
	c.mem.Add(hashed, entry)
	return entry.Response, true
}

// Put stores a response under key.
func (c *Cache) Put(key, model, response string) error {
	if !c.enabled {
		return nil
	}
	hashed := HashKey(key)
	entry := Entry{
		Key:       hashed,
		Model:     model,
		Response:  response,
		CreatedAt: time.Now(),
		TTL:       c.ttlSeconds,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if err := os.WriteFile(c.entryPath(hashed), data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	c.mem.Add(hashed, entry)
	return nil
}

// Clear removes all cache entries and reports how many files were deleted.
// It works on a disabled cache too, so stale entries can always be purged.
func (c *Cache) Clear() (int, error) {
	if c.mem != nil {
		c.mem.Purge()
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}
	var removed int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats describes the on-disk cache.
type Stats struct {
	Dir        string `json:"dir"`
	Enabled    bool   `json:"enabled"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
}

// GetStats returns information about the cache directory.
func (c *Cache) GetStats() (Stats, error) {
	stats := Stats{Dir: c.dir, Enabled: c.enabled}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if c.expired(entry) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// Enabled returns whether caching is enabled.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

// BuildKey creates the cache key for a model and the exact payload sent to it.
func BuildKey(model, payload string) string {
	return model + ":" + HashKey(payload)
}

func (c *Cache) expired(e Entry) bool {
	ttl := e.TTL
	if c.ttlSeconds > 0 {
		ttl = c.ttlSeconds
	}
	return ttl > 0 && time.Since(e.CreatedAt) > time.Duration(ttl)*time.Second
}

func (c *Cache) entryPath(hashed string) string {
	return filepath.Join(c.dir, hashed+".json")
}

// DefaultDir returns $XDG_CACHE_HOME/aireview or the OS equivalent.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "aireview"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "aireview"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "aireview", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "aireview", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "aireview"), nil
	}
}
