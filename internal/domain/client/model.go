package client

import (
	"strings"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
)

// Client is the billed party of an invoice
type Client struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Email     string  `db:"email" json:"email"`
	Phone     string  `db:"phone" json:"phone"`
	Website   *string `db:"website" json:"website,omitempty"`
	Address   string  `db:"address" json:"address"`
	CompanyID *string `db:"company_id" json:"company_id,omitempty"`

	types.BaseModel
}

// Company optionally groups a client under an organisation
type Company struct {
	ID       string  `db:"id" json:"id"`
	ClientID string  `db:"client_id" json:"client_id"`
	Name     string  `db:"name" json:"name"`
	Address  *string `db:"address" json:"address,omitempty"`
	Phone    *string `db:"phone" json:"phone,omitempty"`
	Email    *string `db:"email" json:"email,omitempty"`
	Project  *string `db:"project" json:"project,omitempty"`

	types.BaseModel
}

func (c *Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ierr.NewError("client name is required").
			WithHint("Client name is required").
			Mark(ierr.ErrValidation)
	}
	if strings.TrimSpace(c.Email) == "" {
		return ierr.NewError("client email is required").
			WithHint("Client email is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (c *Company) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ierr.NewError("company name is required").
			WithHint("Company name is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
