package connection

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// CacheEntry is one live session in the cache.
type CacheEntry struct {
	Kind string
	Conn Connection
}

// Cache is the process-scoped mapping of host name to live session. It is
// the only legitimate owner of live sessions: populated lazily on first use
// per host, invalidated on transport failure, drained at run end.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	// inflight serializes concurrent connects to the same host so only one
	// physical connect occurs; other callers await it.
	inflight map[string]*sync.Mutex
}

// NewCache creates an empty connection cache.
func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string]*CacheEntry),
		inflight: make(map[string]*sync.Mutex),
	}
}

// Has reports whether a live session exists for the host.
func (c *Cache) Has(hostname string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[hostname]
	return ok
}

// GetOrConnect returns the cached session for the host, or invokes the
// connect function to create one. Concurrent callers for the same host
// block until the single connect completes.
func (c *Cache) GetOrConnect(ctx context.Context, hostname string, connect func(ctx context.Context) (Connection, error)) (Connection, error) {
	c.mu.Lock()
	stale, ok := c.entries[hostname]
	if ok && stale.Conn.IsConnected() {
		c.mu.Unlock()
		return stale.Conn, nil
	}
	lock, ok := c.inflight[hostname]
	if !ok {
		lock = &sync.Mutex{}
		c.inflight[hostname] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// Another caller may have connected while we waited; its result is
	// shared rather than connecting again.
	c.mu.Lock()
	if entry, ok := c.entries[hostname]; ok && (entry != stale || entry.Conn.IsConnected()) {
		c.mu.Unlock()
		return entry.Conn, nil
	}
	c.mu.Unlock()

	conn, err := connect(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[hostname] = &CacheEntry{Kind: conn.Kind(), Conn: conn}
	c.mu.Unlock()

	return conn, nil
}

// Evict removes and closes the host's session, if any.
func (c *Cache) Evict(hostname string) {
	c.mu.Lock()
	entry, ok := c.entries[hostname]
	if ok {
		delete(c.entries, hostname)
	}
	c.mu.Unlock()

	if ok {
		if err := entry.Conn.Close(); err != nil {
			log.Warn().Str("host", hostname).Err(err).Msg("error closing evicted connection")
		}
	}
}

// Size returns the number of cached sessions.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Drain closes all sessions. Close errors are logged, not raised.
func (c *Cache) Drain() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()

	for hostname, entry := range entries {
		if err := entry.Conn.Close(); err != nil {
			log.Warn().Str("host", hostname).Err(err).Msg("error closing connection on drain")
		}
	}
}
