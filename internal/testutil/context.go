package testutil

import (
	"context"

	"github.com/invoicely/invoicely/internal/types"
)

// SetupContext returns a request-scoped context acting as the default staff user
func SetupContext() context.Context {
	return ContextAs(types.DefaultUserID)
}

// ContextAs returns a request-scoped context acting as userID
func ContextAs(userID string) context.Context {
	ctx := types.SetUserID(context.Background(), userID)
	return context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
}
