package cache

import (
	"context"
	"strings"
	"time"

	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/logger"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultExpiration is used when no TTL is configured
const DefaultExpiration = 30 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 1 * time.Hour

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
	logger  *logger.Logger
}

// NewInMemoryCache creates a new InMemoryCache instance
func NewInMemoryCache(cfg *config.Configuration, logger *logger.Logger) Cache {
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = DefaultExpiration
	}

	logger.Infow("initializing cache", "enabled", cfg.Cache.Enabled, "ttl", ttl)

	return &InMemoryCache{
		cache:   goCache.New(ttl, DefaultCleanupInterval),
		enabled: cfg.Cache.Enabled,
		logger:  logger,
	}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	span := startSpan(ctx, "get", key)
	value, found := c.cache.Get(key)
	finishSpan(span, found)
	return value, found
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(key)
}

// DeleteByPrefix removes all keys with the given prefix
func (c *InMemoryCache) DeleteByPrefix(ctx context.Context, prefix string) {
	if !c.enabled {
		return
	}

	span := startSpan(ctx, "delete_prefix", prefix)
	evicted := 0
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
			evicted++
		}
	}
	finishSpan(span, evicted > 0)
}

// Flush removes all items from the cache
func (c *InMemoryCache) Flush(_ context.Context) {
	c.cache.Flush()
}
