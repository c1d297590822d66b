package dto

import (
	"context"
	"strings"

	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/types"
)

// ClientRequest carries the client block of an invoice form. When ID is set
// the existing client is updated instead of a new one being created.
type ClientRequest struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone,omitempty"`
	Website *string `json:"website,omitempty"`
	Address string  `json:"address,omitempty"`
}

// CompanyRequest carries the optional company block of an invoice form
type CompanyRequest struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Project *string `json:"project,omitempty"`
}

// HasName reports whether the company block should produce a company record
func (r *CompanyRequest) HasName() bool {
	return r != nil && strings.TrimSpace(r.Name) != ""
}

// ToClient builds a new client from the request
func (r *ClientRequest) ToClient(ctx context.Context) *client.Client {
	return &client.Client{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:      strings.TrimSpace(r.Name),
		Email:     strings.TrimSpace(r.Email),
		Phone:     r.Phone,
		Website:   blankToNil(r.Website),
		Address:   r.Address,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

// ApplyTo overwrites the editable fields of an existing client
func (r *ClientRequest) ApplyTo(ctx context.Context, c *client.Client) {
	c.Name = strings.TrimSpace(r.Name)
	c.Email = strings.TrimSpace(r.Email)
	c.Phone = r.Phone
	c.Address = r.Address
	if r.Website != nil {
		c.Website = blankToNil(r.Website)
	}
	c.UpdatedBy = types.GetUserID(ctx)
}

// ToCompany builds a new company owned by clientID
func (r *CompanyRequest) ToCompany(ctx context.Context, clientID string) *client.Company {
	return &client.Company{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_COMPANY),
		ClientID:  clientID,
		Name:      strings.TrimSpace(r.Name),
		Address:   blankToNil(r.Address),
		Phone:     blankToNil(r.Phone),
		Email:     blankToNil(r.Email),
		Project:   blankToNil(r.Project),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

// ApplyTo overwrites the editable fields of an existing company
func (r *CompanyRequest) ApplyTo(ctx context.Context, c *client.Company) {
	c.Name = strings.TrimSpace(r.Name)
	c.Address = blankToNil(r.Address)
	c.Phone = blankToNil(r.Phone)
	c.Email = blankToNil(r.Email)
	c.Project = blankToNil(r.Project)
	c.UpdatedBy = types.GetUserID(ctx)
}

// ClientResponse is the client as returned by the API
type ClientResponse struct {
	*client.Client
}

// CompanyResponse is the company as returned by the API
type CompanyResponse struct {
	*client.Company
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
