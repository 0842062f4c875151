package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"accessd.org/internal/auth"
	"accessd.org/internal/ids"
)

// Memory holds users, roles and permissions in process memory. It backs
// dev mode and tests. Users reference roles by name, so a role mutation is
// visible on the next user lookup without touching the user records.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]*userRecord
	usernameIdx map[string]string
	emailIdx    map[string]string
	roles       map[string]*roleRecord
	roleNameIdx map[string]string
	perms       map[string]auth.Permission
}

type userRecord struct {
	user      auth.User
	roleNames []string
}

type roleRecord struct {
	role      auth.Role
	permNames []string
}

func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]*userRecord),
		usernameIdx: make(map[string]string),
		emailIdx:    make(map[string]string),
		roles:       make(map[string]*roleRecord),
		roleNameIdx: make(map[string]string),
		perms:       make(map[string]auth.Permission),
	}
}

func (m *Memory) Users() auth.UserStore             { return &memoryUsers{m: m} }
func (m *Memory) Roles() auth.RoleStore             { return &memoryRoles{m: m} }
func (m *Memory) Permissions() auth.PermissionStore { return &memoryPermissions{m: m} }

// resolveUser materializes a user with its current role and permission
// sets. Dangling role names (role deleted after assignment) are skipped.
func (m *Memory) resolveUser(rec *userRecord) *auth.User {
	u := rec.user
	u.Roles = nil
	for _, name := range rec.roleNames {
		roleID, ok := m.roleNameIdx[name]
		if !ok {
			continue
		}
		u.Roles = append(u.Roles, m.resolveRole(m.roles[roleID]))
	}
	return &u
}

func (m *Memory) resolveRole(rec *roleRecord) auth.Role {
	r := rec.role
	r.Permissions = nil
	for _, name := range rec.permNames {
		if p, ok := m.perms[name]; ok {
			r.Permissions = append(r.Permissions, p)
		}
	}
	return r
}

// --- users ---

type memoryUsers struct{ m *Memory }

func (s *memoryUsers) Create(ctx context.Context, u *auth.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	username := strings.TrimSpace(u.Username)
	email := strings.TrimSpace(strings.ToLower(u.Email))
	if username == "" || email == "" {
		return fmt.Errorf("%w: username and email are required", auth.ErrInvalidInput)
	}
	if _, taken := s.m.usernameIdx[username]; taken {
		return fmt.Errorf("%w: username %s", auth.ErrAlreadyExists, username)
	}
	if _, taken := s.m.emailIdx[email]; taken {
		return fmt.Errorf("%w: email %s", auth.ErrAlreadyExists, email)
	}

	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Username = username
	u.Email = email

	rec := &userRecord{user: *u, roleNames: roleNames(u.Roles)}
	rec.user.Roles = nil
	s.m.users[u.ID] = rec
	s.m.usernameIdx[username] = u.ID
	s.m.emailIdx[email] = u.ID
	return nil
}

func (s *memoryUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rec, ok := s.m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return s.m.resolveUser(rec), nil
}

func (s *memoryUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.usernameIdx[strings.TrimSpace(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return s.m.resolveUser(s.m.users[id]), nil
}

func (s *memoryUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.emailIdx[strings.TrimSpace(strings.ToLower(email))]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return s.m.resolveUser(s.m.users[id]), nil
}

func (s *memoryUsers) List(ctx context.Context) ([]*auth.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*auth.User, 0, len(s.m.users))
	for _, rec := range s.m.users {
		out = append(out, s.m.resolveUser(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	_, ok := s.m.usernameIdx[strings.TrimSpace(username)]
	return ok, nil
}

func (s *memoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	_, ok := s.m.emailIdx[strings.TrimSpace(strings.ToLower(email))]
	return ok, nil
}

func (s *memoryUsers) Save(ctx context.Context, u *auth.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	rec, ok := s.m.users[u.ID]
	if !ok {
		return auth.ErrNotFound
	}

	username := strings.TrimSpace(u.Username)
	email := strings.TrimSpace(strings.ToLower(u.Email))
	if other, taken := s.m.usernameIdx[username]; taken && other != u.ID {
		return fmt.Errorf("%w: username %s", auth.ErrAlreadyExists, username)
	}
	if other, taken := s.m.emailIdx[email]; taken && other != u.ID {
		return fmt.Errorf("%w: email %s", auth.ErrAlreadyExists, email)
	}

	delete(s.m.usernameIdx, rec.user.Username)
	delete(s.m.emailIdx, rec.user.Email)

	u.UpdatedAt = time.Now().UTC()
	u.CreatedAt = rec.user.CreatedAt
	updated := &userRecord{user: *u, roleNames: roleNames(u.Roles)}
	updated.user.Roles = nil
	updated.user.Username = username
	updated.user.Email = email
	s.m.users[u.ID] = updated
	s.m.usernameIdx[username] = u.ID
	s.m.emailIdx[email] = u.ID
	return nil
}

func (s *memoryUsers) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	rec, ok := s.m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.m.usernameIdx, rec.user.Username)
	delete(s.m.emailIdx, rec.user.Email)
	delete(s.m.users, id)
	return nil
}

// --- roles ---

type memoryRoles struct{ m *Memory }

func (s *memoryRoles) Create(ctx context.Context, r *auth.Role) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("%w: role name is required", auth.ErrInvalidInput)
	}
	if _, taken := s.m.roleNameIdx[name]; taken {
		return fmt.Errorf("%w: role %s", auth.ErrAlreadyExists, name)
	}

	if r.ID == "" {
		r.ID = ids.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Name = name

	rec := &roleRecord{role: *r, permNames: permNames(r.Permissions)}
	rec.role.Permissions = nil
	s.m.roles[r.ID] = rec
	s.m.roleNameIdx[name] = r.ID
	return nil
}

func (s *memoryRoles) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	id, ok := s.m.roleNameIdx[strings.TrimSpace(name)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	role := s.m.resolveRole(s.m.roles[id])
	return &role, nil
}

func (s *memoryRoles) List(ctx context.Context) ([]*auth.Role, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]*auth.Role, 0, len(s.m.roles))
	for _, rec := range s.m.roles {
		role := s.m.resolveRole(rec)
		out = append(out, &role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryRoles) Save(ctx context.Context, r *auth.Role) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	rec, ok := s.m.roles[r.ID]
	if !ok {
		return auth.ErrNotFound
	}

	name := strings.TrimSpace(r.Name)
	if other, taken := s.m.roleNameIdx[name]; taken && other != r.ID {
		return fmt.Errorf("%w: role %s", auth.ErrAlreadyExists, name)
	}
	delete(s.m.roleNameIdx, rec.role.Name)

	r.UpdatedAt = time.Now().UTC()
	r.CreatedAt = rec.role.CreatedAt
	r.Name = name
	updated := &roleRecord{role: *r, permNames: permNames(r.Permissions)}
	updated.role.Permissions = nil
	s.m.roles[r.ID] = updated
	s.m.roleNameIdx[name] = r.ID
	return nil
}

func (s *memoryRoles) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	rec, ok := s.m.roles[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.m.roleNameIdx, rec.role.Name)
	delete(s.m.roles, id)
	return nil
}

// --- permissions ---

type memoryPermissions struct{ m *Memory }

func (s *memoryPermissions) Ensure(ctx context.Context, perms []auth.Permission) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range perms {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if _, ok := s.m.perms[name]; ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		p.Name = name
		p.CreatedAt = time.Now().UTC()
		s.m.perms[name] = p
	}
	return nil
}

func (s *memoryPermissions) List(ctx context.Context) ([]auth.Permission, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]auth.Permission, 0, len(s.m.perms))
	for _, p := range s.m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func roleNames(roles []auth.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	return out
}

func permNames(perms []auth.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Name)
	}
	return out
}
