package postgres

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/lib/pq"
)

// Postgres error codes with special handling
const (
	codeSerializationFailure = pq.ErrorCode("40001")
	codeDeadlockDetected     = pq.ErrorCode("40P01")
	codeLockNotAvailable     = pq.ErrorCode("55P03")
	codeUniqueViolation      = pq.ErrorCode("23505")
	codeForeignKeyViolation  = pq.ErrorCode("23503")
	codeCheckViolation       = pq.ErrorCode("23514")
)

// Classify maps driver errors onto the application error taxonomy.
// Errors that are already classified pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if ierr.IsNotFound(err) || ierr.IsValidation(err) || ierr.IsConcurrency(err) ||
		ierr.IsDatabase(err) || ierr.IsAlreadyExists(err) || ierr.IsInvalidOperation(err) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		details := map[string]any{"pg_code": string(pqErr.Code)}
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return ierr.WithError(err).
				WithHint("The record is being changed by another request, please retry").
				WithReportableDetails(details).
				Mark(ierr.ErrConcurrency)
		case codeUniqueViolation:
			details["constraint"] = pqErr.Constraint
			return ierr.WithError(err).
				WithHint("A record with the same value already exists").
				WithReportableDetails(details).
				Mark(ierr.ErrAlreadyExists, ierr.ErrValidation)
		case codeForeignKeyViolation, codeCheckViolation:
			details["constraint"] = pqErr.Constraint
			return ierr.WithError(err).
				WithHint("The request references data that is missing or invalid").
				WithReportableDetails(details).
				Mark(ierr.ErrValidation)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHint("Record not found").
			Mark(ierr.ErrNotFound)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ierr.WithError(err).
			WithHint("The operation timed out, please retry").
			Mark(ierr.ErrDatabase)
	}

	return ierr.WithError(err).
		WithHint("A database error occurred").
		Mark(ierr.ErrDatabase)
}

// IsUniqueViolation reports whether err is a unique constraint violation on the named constraint
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
