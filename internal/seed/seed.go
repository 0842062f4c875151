// Package seed installs the default permission catalog, the standard
// roles and a set of development accounts. It runs only in development
// setups; production schemas are provisioned externally.
package seed

import (
	"context"
	"fmt"

	"accessd.org/internal/auth"
	"accessd.org/internal/obs"
)

// Stores groups the three stores seeding writes to.
type Stores struct {
	Users       auth.UserStore
	Roles       auth.RoleStore
	Permissions auth.PermissionStore
}

// Run seeds default data unless roles already exist.
func Run(ctx context.Context, s Stores, hasher *auth.PasswordHasher) error {
	existing, err := s.Roles.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: list roles: %w", err)
	}
	if len(existing) > 0 {
		obs.LogRequest(map[string]any{"level": "info", "msg": "seed skipped, roles already present"})
		return nil
	}

	if err := s.Permissions.Ensure(ctx, auth.BuiltinPermissions); err != nil {
		return fmt.Errorf("seed: ensure permissions: %w", err)
	}
	perms, err := s.Permissions.List(ctx)
	if err != nil {
		return fmt.Errorf("seed: list permissions: %w", err)
	}
	byName := make(map[string]auth.Permission, len(perms))
	for _, p := range perms {
		byName[p.Name] = p
	}
	pick := func(names ...string) []auth.Permission {
		out := make([]auth.Permission, 0, len(names))
		for _, n := range names {
			out = append(out, byName[n])
		}
		return out
	}

	adminRole := auth.Role{
		Name:        "ADMIN",
		Description: "System administrator",
		Permissions: pick(
			auth.PermUserRead, auth.PermUserWrite, auth.PermUserDelete,
			auth.PermRoleRead, auth.PermRoleWrite, auth.PermRoleDelete,
			auth.PermPermissionRead, auth.PermPermissionWrite, auth.PermPermissionDelete,
		),
	}
	managerRole := auth.Role{
		Name:        "MANAGER",
		Description: "Application manager",
		Permissions: pick(auth.PermUserRead, auth.PermUserWrite, auth.PermRoleRead, auth.PermPermissionRead),
	}
	userRole := auth.Role{
		Name:        auth.DefaultRoleName,
		Description: "Standard user",
		Permissions: pick(auth.PermUserRead),
	}
	for _, role := range []*auth.Role{&adminRole, &managerRole, &userRole} {
		if err := s.Roles.Create(ctx, role); err != nil {
			return fmt.Errorf("seed: create role %s: %w", role.Name, err)
		}
	}

	accounts := []struct {
		username, email, password string
		role                      auth.Role
	}{
		{"admin", "admin@example.com", "admin123", adminRole},
		{"manager", "manager@example.com", "manager123", managerRole},
		{"user", "user@example.com", "user123", userRole},
	}
	for _, acc := range accounts {
		hash, err := hasher.Hash(acc.password)
		if err != nil {
			return fmt.Errorf("seed: hash password for %s: %w", acc.username, err)
		}
		u := auth.User{
			Username:              acc.username,
			Email:                 acc.email,
			PasswordHash:          hash,
			Enabled:               true,
			AccountNonExpired:     true,
			AccountNonLocked:      true,
			CredentialsNonExpired: true,
			Roles:                 []auth.Role{acc.role},
		}
		if err := s.Users.Create(ctx, &u); err != nil {
			return fmt.Errorf("seed: create user %s: %w", acc.username, err)
		}
	}

	obs.LogRequest(map[string]any{"level": "info", "msg": "seed completed", "users": len(accounts)})
	return nil
}
