package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/invoicely/invoicely/internal/domain/user"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
)

// AddNewUser creates a staff user. The first SUPERADMIN becomes the invoice issuer.
// Reads USER_EMAIL, USER_NAME, USER_ROLE and the optional USER_SIGNATURE.
func AddNewUser() error {
	email := strings.TrimSpace(os.Getenv("USER_EMAIL"))
	if email == "" {
		return fmt.Errorf("USER_EMAIL is required")
	}

	role := types.UserRole(strings.ToUpper(lo.CoalesceOrEmpty(os.Getenv("USER_ROLE"), string(types.UserRoleAdmin))))
	if !lo.Contains([]types.UserRole{types.UserRoleAdmin, types.UserRoleSuperAdmin}, role) {
		return fmt.Errorf("unsupported role %q", role)
	}

	env, err := newScriptEnv()
	if err != nil {
		return err
	}
	defer env.close()

	ctx := scriptContext("")
	u := &user.User{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USER),
		Username:  lo.CoalesceOrEmpty(os.Getenv("USER_NAME"), strings.Split(email, "@")[0]),
		Email:     email,
		Role:      role,
		Signature: lo.EmptyableToPtr(strings.TrimSpace(os.Getenv("USER_SIGNATURE"))),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	if err := env.params.UserRepo.Create(ctx, u); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	env.log.Infow("created user", "id", u.ID, "email", u.Email, "role", u.Role)
	fmt.Printf("User created: %s (%s)\n", u.ID, u.Role)
	return nil
}
