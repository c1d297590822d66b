package cache

import (
	"context"
	"testing"

	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(config.GetDefaultConfig(), logger.NewNoopLogger())

	key := GenerateKey(PrefixIssuer, "signature")
	assert.Equal(t, "issuer:v1::signature", key)

	c.Set(ctx, key, "data:image/png;base64,AAA", 0)
	c.Set(ctx, GenerateKey("other:v1:", "client_1"), "x", 0)

	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AAA", v)

	c.DeleteByPrefix(ctx, PrefixIssuer)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)

	_, ok = c.Get(ctx, GenerateKey("other:v1:", "client_1"))
	assert.True(t, ok)
}

func TestDisabledCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg, logger.NewNoopLogger())

	c.Set(ctx, "k", 1, 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
