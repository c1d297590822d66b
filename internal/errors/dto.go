package errors

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultDisplayMessage is shown when an error carries no hint
const DefaultDisplayMessage = "An unexpected error occurred"

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Display string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// CodeFromErr returns the machine readable code of the first sentinel the error is marked with
func CodeFromErr(err error) string {
	for _, sc := range statusCodes {
		if Is(err, sc.err) {
			return sc.err.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}

// DisplayMessage returns the first non-empty hint attached to err
func DisplayMessage(err error) string {
	// GetAllHints is a post-order traversal, so the innermost hint comes first
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return DefaultDisplayMessage
}
