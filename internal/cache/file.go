package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one cached listing response.
type Entry struct {
	Body       []byte    `json:"body"`
	ETag       string    `json:"etag,omitempty"`
	LastMod    string    `json:"last_modified,omitempty"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// FileCache stores listing responses on disk with a TTL. Expired entries
// are still returned (not fresh) so callers can revalidate with
// ETag/If-Modified-Since instead of refetching the full body.
type FileCache struct {
	dir string
	ttl time.Duration
}

// New creates the cache directory if needed.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl}, nil
}

// Get returns the entry for key and whether it is still fresh.
func (c *FileCache) Get(key string) (*Entry, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		os.Remove(path)
		return nil, false
	}

	if time.Since(entry.CachedAt) > c.ttl {
		return &entry, false
	}
	return &entry, true
}

// Set stores an entry under key, stamping the cache time.
func (c *FileCache) Set(key string, entry *Entry) error {
	entry.CachedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return os.WriteFile(c.path(key), data, 0o644)
}

// Invalidate drops the entry for key. Used after a copy lands on a
// target so the next listing reflects the new model.
func (c *FileCache) Invalidate(key string) {
	os.Remove(c.path(key))
}

func (c *FileCache) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
