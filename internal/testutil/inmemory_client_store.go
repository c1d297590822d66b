package testutil

import (
	"context"

	"github.com/invoicely/invoicely/internal/domain/client"
	ierr "github.com/invoicely/invoicely/internal/errors"
)

var _ client.Repository = (*InMemoryClientStore)(nil)

// InMemoryClientStore implements client.Repository
type InMemoryClientStore struct {
	*InMemoryStore[*client.Client]
	companies *InMemoryStore[*client.Company]
}

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{
		InMemoryStore: NewInMemoryStore[*client.Client](func(c *client.Client) *client.Client {
			if c == nil {
				return nil
			}
			cp := *c
			cp.Website = copyString(c.Website)
			cp.CompanyID = copyString(c.CompanyID)
			return &cp
		}),
		companies: NewInMemoryStore[*client.Company](func(c *client.Company) *client.Company {
			if c == nil {
				return nil
			}
			cp := *c
			cp.Address = copyString(c.Address)
			cp.Phone = copyString(c.Phone)
			cp.Email = copyString(c.Email)
			cp.Project = copyString(c.Project)
			return &cp
		}),
	}
}

func notFound(entity, id string) error {
	return ierr.NewErrorf("%s %s not found", entity, id).
		WithHintf("The %s was not found", entity).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryClientStore) Create(ctx context.Context, c *client.Client) error {
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, notFound("client", id)
	}
	return c, nil
}

func (s *InMemoryClientStore) Update(ctx context.Context, c *client.Client) error {
	if err := s.InMemoryStore.Update(ctx, c.ID, c); err != nil {
		return notFound("client", c.ID)
	}
	return nil
}

func (s *InMemoryClientStore) CreateCompany(ctx context.Context, c *client.Company) error {
	return s.companies.Create(ctx, c.ID, c)
}

func (s *InMemoryClientStore) GetCompany(ctx context.Context, id string) (*client.Company, error) {
	c, err := s.companies.Get(ctx, id)
	if err != nil {
		return nil, notFound("company", id)
	}
	return c, nil
}

func (s *InMemoryClientStore) UpdateCompany(ctx context.Context, c *client.Company) error {
	if err := s.companies.Update(ctx, c.ID, c); err != nil {
		return notFound("company", c.ID)
	}
	return nil
}

// Clear removes all clients and companies
func (s *InMemoryClientStore) Clear() {
	s.InMemoryStore.Clear()
	s.companies.Clear()
}
