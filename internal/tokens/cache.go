// Package tokens holds the in-memory API token store. Tokens and their
// per-token rate limits live in Postgres and are mirrored here so request
// handling never touches the database.
package tokens

import "sync"

// Entry is one API token's attributes.
type Entry struct {
	RateLimit int
}

// Cache is the shared token set. A nil map means tokens were never loaded,
// which is distinct from an empty token set.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewCache() *Cache {
	return &Cache{}
}

// Ready reports whether the cache has been populated at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries != nil
}

// Replace swaps in a full new token set.
func (c *Cache) Replace(m map[string]Entry) {
	entries := make(map[string]Entry, len(m))
	for k, v := range m {
		entries[k] = v
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Validate reports whether the given token is known.
func (c *Cache) Validate(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[token]
	return ok
}

// RateLimit returns the configured limit for the given token. Unknown tokens
// get 0, which disables rate limiting for them.
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[token].RateLimit
}
