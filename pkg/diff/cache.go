package diff

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// Side identifies which of the two views being diffed a cache entry belongs
// to, since the same path on the left and right side must never be confused.
type Side uint8

const (
	// Left is the base side of a diff.
	Left Side = iota
	// Right is the target side of a diff.
	Right
)

// cacheKey identifies a single content-compare cache entry.
type cacheKey struct {
	path    string
	size    int64
	modTime int64
	side    Side
}

// ContentCache memoizes file-body fingerprints across diff runs so that
// unchanged files don't need to be re-read every time two views are compared.
// It is created alongside a watcher and should be discarded (or replaced)
// whenever the watcher is detached or settings change, since a stale entry
// keyed by a recycled (size, mtime) pair could mask a real content change.
type ContentCache struct {
	mu           sync.Mutex
	fingerprints map[cacheKey][sha256.Size]byte
}

// NewContentCache creates an empty content-compare cache.
func NewContentCache() *ContentCache {
	return &ContentCache{fingerprints: make(map[cacheKey][sha256.Size]byte)}
}

// Fingerprint returns a content fingerprint for the file at path on the given
// side of view, reading and hashing the body only if it isn't already cached
// for the current (size, mtime) pair.
func (c *ContentCache) Fingerprint(ctx context.Context, view syncfs.View, path string, stat *syncfs.Stat, side Side) ([sha256.Size]byte, error) {
	key := cacheKey{path: path, size: stat.Size, modTime: stat.ModTime.UnixNano(), side: side}

	c.mu.Lock()
	if fp, ok := c.fingerprints[key]; ok {
		c.mu.Unlock()
		return fp, nil
	}
	c.mu.Unlock()

	data, err := view.ReadFile(ctx, path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	fp := sha256.Sum256(data)

	c.mu.Lock()
	c.fingerprints[key] = fp
	c.mu.Unlock()

	return fp, nil
}

// Clear discards all memoized fingerprints, e.g. when a watcher is detached or
// settings change.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	c.fingerprints = make(map[cacheKey][sha256.Size]byte)
	c.mu.Unlock()
}
