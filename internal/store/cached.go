package store

import (
	"context"
	"encoding/json"

	"accessd.org/internal/auth"
	"accessd.org/internal/cache"
	"accessd.org/internal/obs"
)

// Cache partitions. A user mutation clears the three user partitions; a
// role mutation clears roles and cascades to the user partitions, because
// user authorities are resolved transitively through roles.
const (
	PartitionUsers          = "users"
	PartitionUserByUsername = "userByUsername"
	PartitionUserByEmail    = "userByEmail"
	PartitionRoles          = "roles"
	PartitionPermissions    = "permissions"
)

const listKey = "_all"

// Invalidator clears cache partitions after store mutations. Invalidation
// is coarse (whole partitions, not keys): user and role mutation is rare
// relative to reads, and clearing everything is simpler to keep correct.
// Backend failures are already swallowed by the cache, so the triggering
// mutation can never fail here.
type Invalidator struct {
	cache cache.Cache
}

func NewInvalidator(c cache.Cache) *Invalidator {
	return &Invalidator{cache: c}
}

// UserDataChanged clears every partition derived from user records.
func (inv *Invalidator) UserDataChanged(ctx context.Context) {
	inv.clear(ctx, PartitionUsers, PartitionUserByUsername, PartitionUserByEmail)
}

// RoleDataChanged clears the role partition and cascades to user lookups,
// whose resolved authorities embed role data.
func (inv *Invalidator) RoleDataChanged(ctx context.Context) {
	inv.clear(ctx, PartitionRoles, PartitionUsers, PartitionUserByUsername, PartitionUserByEmail)
}

func (inv *Invalidator) clear(ctx context.Context, partitions ...string) {
	for _, p := range partitions {
		inv.cache.Clear(ctx, p)
	}
}

// CachedUsers is the explicit cache-aside wrapper around a user store:
// reads consult a partition first and populate it on miss, every mutation
// routes through the invalidator.
type CachedUsers struct {
	inner auth.UserStore
	cache cache.Cache
	inv   *Invalidator
}

func NewCachedUsers(inner auth.UserStore, c cache.Cache, inv *Invalidator) *CachedUsers {
	return &CachedUsers{inner: inner, cache: c, inv: inv}
}

func (s *CachedUsers) Create(ctx context.Context, u *auth.User) error {
	if err := s.inner.Create(ctx, u); err != nil {
		return err
	}
	s.inv.UserDataChanged(ctx)
	return nil
}

func (s *CachedUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.cachedUser(ctx, PartitionUsers, id, func() (*auth.User, error) {
		return s.inner.FindByID(ctx, id)
	})
}

func (s *CachedUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.cachedUser(ctx, PartitionUserByUsername, username, func() (*auth.User, error) {
		return s.inner.FindByUsername(ctx, username)
	})
}

func (s *CachedUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.cachedUser(ctx, PartitionUserByEmail, email, func() (*auth.User, error) {
		return s.inner.FindByEmail(ctx, email)
	})
}

func (s *CachedUsers) List(ctx context.Context) ([]*auth.User, error) {
	if data, ok := s.cache.Get(ctx, PartitionUsers, listKey); ok {
		var users []*auth.User
		if err := json.Unmarshal(data, &users); err == nil {
			return users, nil
		}
		corruptEntry(PartitionUsers)
	}
	users, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(users); err == nil {
		s.cache.Set(ctx, PartitionUsers, listKey, data)
	}
	return users, nil
}

func (s *CachedUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.inner.ExistsByUsername(ctx, username)
}

func (s *CachedUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.inner.ExistsByEmail(ctx, email)
}

func (s *CachedUsers) Save(ctx context.Context, u *auth.User) error {
	if err := s.inner.Save(ctx, u); err != nil {
		return err
	}
	s.inv.UserDataChanged(ctx)
	return nil
}

func (s *CachedUsers) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.inv.UserDataChanged(ctx)
	return nil
}

func (s *CachedUsers) cachedUser(ctx context.Context, partition, key string, load func() (*auth.User, error)) (*auth.User, error) {
	if data, ok := s.cache.Get(ctx, partition, key); ok {
		u := new(cachedUser)
		if err := json.Unmarshal(data, u); err == nil {
			return u.toUser(), nil
		}
		corruptEntry(partition)
	}
	user, err := load()
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(fromUser(user)); err == nil {
		s.cache.Set(ctx, partition, key, data)
	}
	return user, nil
}

// cachedUser carries the password hash across the cache boundary; the
// public User JSON shape deliberately omits it.
type cachedUser struct {
	User auth.User `json:"user"`
	Hash string    `json:"hash"`
}

func fromUser(u *auth.User) *cachedUser {
	return &cachedUser{User: *u, Hash: u.PasswordHash}
}

func (c *cachedUser) toUser() *auth.User {
	u := c.User
	u.PasswordHash = c.Hash
	return &u
}

func corruptEntry(partition string) {
	obs.LogRequest(map[string]any{
		"level": "warn", "msg": "corrupt cache entry dropped", "partition": partition,
	})
}

// CachedRoles wraps a role store the same way; role mutations cascade to
// the user partitions.
type CachedRoles struct {
	inner auth.RoleStore
	cache cache.Cache
	inv   *Invalidator
}

func NewCachedRoles(inner auth.RoleStore, c cache.Cache, inv *Invalidator) *CachedRoles {
	return &CachedRoles{inner: inner, cache: c, inv: inv}
}

func (s *CachedRoles) Create(ctx context.Context, r *auth.Role) error {
	if err := s.inner.Create(ctx, r); err != nil {
		return err
	}
	s.inv.RoleDataChanged(ctx)
	return nil
}

func (s *CachedRoles) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	if data, ok := s.cache.Get(ctx, PartitionRoles, name); ok {
		var role auth.Role
		if err := json.Unmarshal(data, &role); err == nil {
			return &role, nil
		}
		corruptEntry(PartitionRoles)
	}
	role, err := s.inner.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(role); err == nil {
		s.cache.Set(ctx, PartitionRoles, name, data)
	}
	return role, nil
}

func (s *CachedRoles) List(ctx context.Context) ([]*auth.Role, error) {
	if data, ok := s.cache.Get(ctx, PartitionRoles, listKey); ok {
		var roles []*auth.Role
		if err := json.Unmarshal(data, &roles); err == nil {
			return roles, nil
		}
		corruptEntry(PartitionRoles)
	}
	roles, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(roles); err == nil {
		s.cache.Set(ctx, PartitionRoles, listKey, data)
	}
	return roles, nil
}

func (s *CachedRoles) Save(ctx context.Context, r *auth.Role) error {
	if err := s.inner.Save(ctx, r); err != nil {
		return err
	}
	s.inv.RoleDataChanged(ctx)
	return nil
}

func (s *CachedRoles) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.inv.RoleDataChanged(ctx)
	return nil
}
