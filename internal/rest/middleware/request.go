package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicely/invoicely/internal/types"
)

func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	ctx = context.WithValue(ctx, types.CtxClientIP, c.ClientIP())
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// UserMiddleware copies the acting user set by the upstream gateway into the request context
func UserMiddleware(c *gin.Context) {
	if userID := strings.TrimSpace(c.GetHeader(types.HeaderUserID)); userID != "" {
		c.Request = c.Request.WithContext(types.SetUserID(c.Request.Context(), userID))
	}
	tagSentryScope(c)
	c.Next()
}
