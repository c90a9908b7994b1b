package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Loader fetches the raw rule document and its version.
type Loader interface {
	// Version returns the current document version without fetching it.
	Version(ctx context.Context) (int64, error)

	// Fetch returns the document together with the version it belongs to.
	Fetch(ctx context.Context) ([]byte, int64, error)
}

// Cache keeps the parsed rule list and reloads it when the loader reports a
// new version. The version is checked at most once per interval.
type Cache struct {
	loader   Loader
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu        sync.RWMutex
	rules     []*Rule
	version   int64
	loaded    bool
	checkedAt time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock overrides the clock used for interval checks.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for reload messages.
func WithLogger(log *slog.Logger) CacheOption {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCache creates a rule cache over loader.
func NewCache(loader Loader, interval time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		loader:   loader,
		interval: interval,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules implements Source.
func (c *Cache) Rules(ctx context.Context) ([]*Rule, error) {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.checkedAt) < c.interval {
		rules := c.rules
		c.mu.RUnlock()
		return rules, nil
	}
	loaded, current := c.loaded, c.version
	c.mu.RUnlock()

	if loaded {
		v, err := c.loader.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check rules version: %w", err)
		}
		if v == current {
			c.mu.Lock()
			c.checkedAt = c.now()
			rules := c.rules
			c.mu.Unlock()
			return rules, nil
		}
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules, nil
}

// Refresh fetches and parses the document unconditionally.
func (c *Cache) Refresh(ctx context.Context) error {
	doc, version, err := c.loader.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}
	rules, err := ParseDocument(doc)
	if err != nil {
		return err
	}

	disabled := 0
	for _, r := range rules {
		if r.Disabled() {
			disabled++
		}
	}

	c.mu.Lock()
	c.rules = rules
	c.version = version
	c.loaded = true
	c.checkedAt = c.now()
	c.mu.Unlock()

	c.log.Debug("Rules reloaded", "version", version, "count", len(rules), "disabled", disabled)
	return nil
}

// Invalidate forces the next Rules call to reload the document.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.checkedAt = time.Time{}
	c.mu.Unlock()
}

// Version returns the version of the cached rule list.
func (c *Cache) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
