package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/config"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	goCache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL         = 30 * time.Minute
	limiterCleanupInterval = 10 * time.Minute
)

// RateLimiter throttles the public routes per client IP. Limiters of clients
// that stay idle longer than limiterIdleTTL are evicted.
type RateLimiter struct {
	clients *goCache.Cache
	limit   rate.Limit
	burst   int
	enabled bool
	logger  *logger.Logger
}

func NewRateLimiter(cfg *config.Configuration, logger *logger.Logger) *RateLimiter {
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		clients: goCache.New(limiterIdleTTL, limiterCleanupInterval),
		limit:   rate.Limit(cfg.RateLimit.RequestsPerSecond),
		burst:   burst,
		enabled: cfg.RateLimit.Enabled,
		logger:  logger,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	if v, ok := rl.clients.Get(key); ok {
		limiter := v.(*rate.Limiter)
		rl.clients.SetDefault(key, limiter)
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	// another request may have raced us; keep whichever landed first
	if err := rl.clients.Add(key, limiter, goCache.DefaultExpiration); err != nil {
		if v, ok := rl.clients.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// Limit returns the gin middleware
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.enabled {
			c.Next()
			return
		}

		key := c.ClientIP()
		if !rl.limiterFor(key).Allow() {
			rl.logger.Warnw("rate limit exceeded",
				"client_ip", key,
				"path", c.FullPath(),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ierr.ErrorResponse{
				Success: false,
				Error: ierr.ErrorDetail{
					Display: "Too many requests, please try again later",
					Code:    "rate_limited",
				},
			})
			return
		}

		c.Next()
	}
}
