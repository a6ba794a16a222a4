// Package cache provides an in-memory LRU cache in front of a key store
// lookup. Entries expire after a TTL and the least recently used entry is
// evicted when the cache is full. Lookup errors are never cached.
package cache

import (
	"container/list"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rhuss/keygate/pkg/auth/apikey"
	"github.com/rhuss/keygate/pkg/keystore"
	"github.com/rhuss/keygate/pkg/observability"
)

// Config controls cache size and lifetimes.
type Config struct {
	// MaxSize bounds the number of cached tokens. 0 means unlimited.
	MaxSize int

	// TTL is how long a valid result is served from the cache.
	TTL time.Duration

	// NegativeTTL is how long an invalid result is cached. 0 disables
	// caching of unknown keys.
	NegativeTTL time.Duration
}

type entry struct {
	digest    string
	result    apikey.Validation
	expiresAt time.Time
	lruElem   *list.Element
}

// Cache wraps a ValidateFunc. Tokens are keyed by digest so plaintext keys
// are not held in memory.
type Cache struct {
	next apikey.ValidateFunc
	cfg  Config
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
}

// New wraps next with a cache.
func New(next apikey.ValidateFunc, cfg Config) *Cache {
	return &Cache{
		next:    next,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
		lruList: list.New(),
	}
}

// Validate serves token from the cache when fresh, otherwise asks the
// wrapped function and stores the answer.
func (c *Cache) Validate(ctx context.Context, token string, r *http.Request) (apikey.Validation, error) {
	digest := keystore.HashToken(token)

	if v, ok := c.get(digest); ok {
		observability.KeyStoreCacheTotal.WithLabelValues("hit").Inc()
		return v, nil
	}
	observability.KeyStoreCacheTotal.WithLabelValues("miss").Inc()

	v, err := c.next(ctx, token, r)
	if err != nil {
		return v, err
	}

	ttl := c.cfg.TTL
	if !v.IsValid || v.Credentials == nil {
		ttl = c.cfg.NegativeTTL
	}
	if ttl > 0 {
		c.put(digest, v, ttl)
	}
	return v, nil
}

// Len returns the number of cached entries, including expired ones not
// yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) get(digest string) (apikey.Validation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[digest]
	if !ok {
		return apikey.Validation{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.remove(e)
		return apikey.Validation{}, false
	}
	c.lruList.MoveToFront(e.lruElem)

	v := e.result
	v.Credentials = v.Credentials.Clone()
	return v, true
}

func (c *Cache) put(digest string, v apikey.Validation, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v.Credentials = v.Credentials.Clone()

	if e, ok := c.entries[digest]; ok {
		e.result = v
		e.expiresAt = c.now().Add(ttl)
		c.lruList.MoveToFront(e.lruElem)
		return
	}

	if c.cfg.MaxSize > 0 && len(c.entries) >= c.cfg.MaxSize {
		c.evictOldest()
	}

	e := &entry{digest: digest, result: v, expiresAt: c.now().Add(ttl)}
	e.lruElem = c.lruList.PushFront(e)
	c.entries[digest] = e
}

// evictOldest removes the least recently used entry. Caller holds mu.
func (c *Cache) evictOldest() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	c.remove(back.Value.(*entry))
}

// remove drops e. Caller holds mu.
func (c *Cache) remove(e *entry) {
	c.lruList.Remove(e.lruElem)
	delete(c.entries, e.digest)
}
