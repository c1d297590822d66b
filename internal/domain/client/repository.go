package client

import "context"

// Repository persists clients and their companies
type Repository interface {
	Create(ctx context.Context, client *Client) error
	Get(ctx context.Context, id string) (*Client, error)
	Update(ctx context.Context, client *Client) error

	CreateCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id string) (*Company, error)
	UpdateCompany(ctx context.Context, company *Company) error
}
