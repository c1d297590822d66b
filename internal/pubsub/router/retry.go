package router

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
)

func shouldRetry(logger *logger.Logger, err error) bool {
	// Malformed payloads never decode on a later attempt
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		logger.Debugw("non-retryable payload error", "error", err)
		return false
	}

	// Business logic errors (don't retry)
	if ierr.IsValidation(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsInvalidOperation(err) ||
		ierr.IsPermissionDenied(err) {
		return false
	}

	// By default, retry unknown errors
	return true
}
