package middleware

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/types"
)

// SentryMiddleware attaches a request-scoped hub. A no-op when Sentry is disabled.
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if !cfg.Sentry.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	})
}

// tagSentryScope copies the request id and acting user onto the request hub
func tagSentryScope(c *gin.Context) {
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		return
	}
	ctx := c.Request.Context()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", types.GetRequestID(ctx))
		if userID := types.GetUserID(ctx); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
	})
}
