package postgres

import (
	"context"
	"time"

	"github.com/invoicely/invoicely/internal/domain/user"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	"github.com/invoicely/invoicely/internal/types"
)

const userColumns = `id, username, email, role, signature, created_at, updated_at, created_by, updated_by`

type userRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.Role, u.Signature, u.CreatedAt, u.UpdatedAt, u.CreatedBy, u.UpdatedBy,
	)
	return postgres.Classify(err)
}

func (r *userRepository) Get(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.db.GetQuerier(ctx).GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if classified := postgres.Classify(err); !ierr.IsNotFound(classified) {
			return nil, classified
		}
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *userRepository) GetFirstByRole(ctx context.Context, role types.UserRole) (*user.User, error) {
	var u user.User
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at ASC LIMIT 1`
	err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, role)
	if err != nil {
		if classified := postgres.Classify(err); !ierr.IsNotFound(classified) {
			return nil, classified
		}
		return nil, ierr.NewErrorf("no user with role %s", role).
			WithHintf("No %s account is configured", role).
			Mark(ierr.ErrNotFound)
	}
	return &u, nil
}

func (r *userRepository) UpdateSignature(ctx context.Context, id string, signature string) error {
	r.logger.Debugw("updating user signature", "user_id", id)

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE users SET signature = $2, updated_at = $3, updated_by = $4 WHERE id = $1`,
		id, signature, time.Now().UTC(), types.GetUserID(ctx),
	)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return notFound("user", id) })
}
