package user

import (
	"context"

	"github.com/invoicely/invoicely/internal/types"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	// GetFirstByRole returns the earliest created user holding the role
	GetFirstByRole(ctx context.Context, role types.UserRole) (*User, error)
	UpdateSignature(ctx context.Context, id string, signature string) error
}
