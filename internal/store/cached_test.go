package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"accessd.org/internal/auth"
	"accessd.org/internal/cache"
)

// countingUsers wraps a user store and counts hits on the inner store, so
// tests can tell cache hits from loads.
type countingUsers struct {
	auth.UserStore
	finds int
}

func (c *countingUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	c.finds++
	return c.UserStore.FindByUsername(ctx, username)
}

func newCachedFixture(t *testing.T) (*Memory, *countingUsers, *CachedUsers, *CachedRoles, cache.Cache) {
	t.Helper()
	m := NewMemory()
	c := cache.NewMemory()
	inv := NewInvalidator(c)
	counting := &countingUsers{UserStore: m.Users()}
	return m, counting, NewCachedUsers(counting, c, inv), NewCachedRoles(m.Roles(), c, inv), c
}

func TestCachedUsersServesSecondReadFromCache(t *testing.T) {
	ctx := context.Background()
	m, counting, users, _, _ := newCachedFixture(t)
	seedMemoryUser(t, m, "alice")

	first, err := users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if counting.finds != 1 {
		t.Fatalf("expected one inner load, got %d", counting.finds)
	}
	if first.Username != second.Username || first.ID != second.ID {
		t.Fatalf("cache returned a different user")
	}
	if second.PasswordHash == "" {
		t.Fatalf("password hash must survive the cache round trip")
	}
}

func TestCachedUsersSaveInvalidates(t *testing.T) {
	ctx := context.Background()
	m, counting, users, _, _ := newCachedFixture(t)
	user := seedMemoryUser(t, m, "alice")

	if _, err := users.FindByUsername(ctx, "alice"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	user.PasswordHash = "$2a$04$changedhash"
	if err := users.Save(ctx, user); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("read after save: %v", err)
	}
	if got.PasswordHash != "$2a$04$changedhash" {
		t.Fatalf("expected fresh hash after invalidation, got %q", got.PasswordHash)
	}
	if counting.finds != 2 {
		t.Fatalf("expected reload after invalidation, got %d loads", counting.finds)
	}
}

func TestCachedRoleMutationCascadesToUsers(t *testing.T) {
	ctx := context.Background()
	m, counting, users, roles, _ := newCachedFixture(t)
	if err := m.Permissions().Ensure(ctx, auth.BuiltinPermissions); err != nil {
		t.Fatalf("ensure permissions: %v", err)
	}
	role := seedRole(t, m.Roles(), "USER", auth.PermUserRead)
	seedMemoryUser(t, m, "alice", *role)

	before, err := users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if got := auth.ResolveAuthorities(before); len(got) != 2 {
		t.Fatalf("expected ROLE_USER+USER_READ, got %v", got)
	}

	// Grant the role another permission through the cached store; the user
	// partitions must be cleared even though no user record changed.
	role.Permissions = append(role.Permissions, auth.Permission{Name: auth.PermUserWrite})
	if err := roles.Save(ctx, role); err != nil {
		t.Fatalf("save role: %v", err)
	}

	after, err := users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("read after role change: %v", err)
	}
	got := auth.ResolveAuthorities(after)
	found := false
	for _, a := range got {
		if a == auth.PermUserWrite {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s after cascade, got %v", auth.PermUserWrite, got)
	}
	if counting.finds != 2 {
		t.Fatalf("expected user reload after role mutation, got %d loads", counting.finds)
	}
}

func TestCachedUsersMissPassesThroughNotFound(t *testing.T) {
	ctx := context.Background()
	_, _, users, _, _ := newCachedFixture(t)

	if _, err := users.FindByUsername(ctx, "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedUsersCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	m, _, users, _, c := newCachedFixture(t)
	seedMemoryUser(t, m, "alice")

	c.Set(ctx, PartitionUserByUsername, "alice", []byte("{not json"))

	got, err := users.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("expected fallback to store, got %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("expected alice, got %q", got.Username)
	}
}

func TestCachedRolesList(t *testing.T) {
	ctx := context.Background()
	m, _, _, roles, c := newCachedFixture(t)
	seedRole(t, m.Roles(), "ADMIN")
	seedRole(t, m.Roles(), "USER")

	first, err := roles.List(ctx)
	if err != nil || len(first) != 2 {
		t.Fatalf("list: %v (%d roles)", err, len(first))
	}

	// the listing is now cached
	data, ok := c.Get(ctx, PartitionRoles, "_all")
	if !ok {
		t.Fatalf("expected cached role listing")
	}
	var cached []*auth.Role
	if err := json.Unmarshal(data, &cached); err != nil || len(cached) != 2 {
		t.Fatalf("unexpected cached payload: %v", err)
	}
}
