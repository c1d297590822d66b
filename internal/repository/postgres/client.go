package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/invoicely/invoicely/internal/domain/client"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
)

const (
	clientColumns  = `id, name, email, phone, website, address, company_id, created_at, updated_at, created_by, updated_by`
	companyColumns = `id, client_id, name, address, phone, email, project, created_at, updated_at, created_by, updated_by`
)

type clientRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewClientRepository creates a new instance of client repository
func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return &clientRepository{
		db:     db,
		logger: logger,
	}
}

func notFound(entity, id string) error {
	return ierr.WithError(errors.Newf("%s %s not found", entity, id)).
		WithHintf("The %s no longer exists, please refresh", entity).
		WithReportableDetails(map[string]any{entity + "_id": id}).
		Mark(ierr.ErrNotFound)
}

func (r *clientRepository) Create(ctx context.Context, c *client.Client) error {
	r.logger.Debugw("creating client", "client_id", c.ID, "name", c.Name)

	query := `INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.Website, c.Address, c.CompanyID,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy,
	)
	return postgres.Classify(err)
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	var c client.Client
	err := r.db.GetQuerier(ctx).GetContext(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	if err != nil {
		if classified := postgres.Classify(err); !ierr.IsNotFound(classified) {
			return nil, classified
		}
		return nil, notFound("client", id)
	}
	return &c, nil
}

func (r *clientRepository) Update(ctx context.Context, c *client.Client) error {
	query := `
		UPDATE clients SET
			name = $2, email = $3, phone = $4, website = $5, address = $6, company_id = $7,
			updated_at = $8, updated_by = $9
		WHERE id = $1`
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.Phone, c.Website, c.Address, c.CompanyID, c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return notFound("client", c.ID) })
}

func (r *clientRepository) CreateCompany(ctx context.Context, c *client.Company) error {
	r.logger.Debugw("creating company", "company_id", c.ID, "client_id", c.ClientID)

	query := `INSERT INTO companies (` + companyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID, c.ClientID, c.Name, c.Address, c.Phone, c.Email, c.Project,
		c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy,
	)
	return postgres.Classify(err)
}

func (r *clientRepository) GetCompany(ctx context.Context, id string) (*client.Company, error) {
	var c client.Company
	err := r.db.GetQuerier(ctx).GetContext(ctx, &c, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	if err != nil {
		if classified := postgres.Classify(err); !ierr.IsNotFound(classified) {
			return nil, classified
		}
		return nil, notFound("company", id)
	}
	return &c, nil
}

func (r *clientRepository) UpdateCompany(ctx context.Context, c *client.Company) error {
	query := `
		UPDATE companies SET
			name = $2, address = $3, phone = $4, email = $5, project = $6,
			updated_at = $7, updated_by = $8
		WHERE id = $1`
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID, c.Name, c.Address, c.Phone, c.Email, c.Project, c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return notFound("company", c.ID) })
}
