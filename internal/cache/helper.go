package cache

import (
	"context"

	"github.com/getsentry/sentry-go"
)

const spanOp = "cache"

// startSpan opens a child span of the request transaction for a cache call.
// It returns nil when the context carries no Sentry hub.
func startSpan(ctx context.Context, operation, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, spanOp+"."+operation)
	span.Description = key
	span.SetData("cache.key", key)
	return span
}

// finishSpan records whether the call found something and closes the span
func finishSpan(span *sentry.Span, hit bool) {
	if span == nil {
		return
	}
	span.SetData("cache.hit", hit)
	span.Status = sentry.SpanStatusOK
	span.Finish()
}
