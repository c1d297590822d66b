package dto

import (
	"strings"

	"github.com/invoicely/invoicely/internal/validator"
)

// UpdateSignatureRequest stores the acting user's signature image
type UpdateSignatureRequest struct {
	Signature string `json:"signature" validate:"required"`
}

func (r *UpdateSignatureRequest) Validate() error {
	r.Signature = strings.TrimSpace(r.Signature)
	return validator.ValidateRequest(r)
}

type SignatureResponse struct {
	UserID    string  `json:"user_id,omitempty"`
	Signature *string `json:"signature"`
}
