package postgres

import (
	"database/sql"

	"github.com/invoicely/invoicely/internal/postgres"
)

// requireAffected returns notFound() when a write matched no rows
func requireAffected(result sql.Result, notFound func() error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return postgres.Classify(err)
	}
	if rows == 0 {
		return notFound()
	}
	return nil
}
