package types

// UserRole is the staff role of a user
type UserRole string

const (
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleSuperAdmin UserRole = "SUPERADMIN"
)
