package auth

import "context"

// UserStore persists user accounts. Lookups return users with their role
// set resolved, permissions included, so callers can derive authorities
// without further round trips. Implementations map missing rows to
// ErrNotFound and uniqueness violations to ErrAlreadyExists.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}

// RoleStore persists roles and their permission sets.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Save(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
}
