package testutil

import (
	"context"
	"time"

	"github.com/invoicely/invoicely/internal/domain/user"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
)

var _ user.Repository = (*InMemoryUserStore)(nil)

// InMemoryUserStore implements user.Repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore[*user.User](func(u *user.User) *user.User {
			if u == nil {
				return nil
			}
			c := *u
			c.Signature = copyString(u.Signature)
			return &c
		}),
	}
}

func (s *InMemoryUserStore) Create(ctx context.Context, u *user.User) error {
	return s.InMemoryStore.Create(ctx, u.ID, u)
}

func (s *InMemoryUserStore) Get(ctx context.Context, id string) (*user.User, error) {
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, notFound("user", id)
	}
	return u, nil
}

func (s *InMemoryUserStore) GetFirstByRole(ctx context.Context, role types.UserRole) (*user.User, error) {
	users := s.Find(func(u *user.User) bool { return u.Role == role })
	if len(users) == 0 {
		return nil, notFound("user", string(role))
	}
	return lo.MinBy(users, func(a, b *user.User) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (s *InMemoryUserStore) UpdateSignature(ctx context.Context, id string, signature string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	u.Signature = lo.ToPtr(signature)
	u.UpdatedAt = time.Now().UTC()
	u.UpdatedBy = types.GetUserID(ctx)
	return s.InMemoryStore.Update(ctx, id, u)
}
