package user

import (
	"github.com/invoicely/invoicely/internal/types"
)

// User is a staff member. Only the issuer profile is managed here,
// authentication lives upstream.
type User struct {
	ID        string         `db:"id" json:"id"`
	Username  string         `db:"username" json:"username"`
	Email     string         `db:"email" json:"email"`
	Role      types.UserRole `db:"role" json:"role"`
	Signature *string        `db:"signature" json:"signature,omitempty"`

	types.BaseModel
}
