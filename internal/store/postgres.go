package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"accessd.org/internal/auth"
	"accessd.org/internal/ids"
)

// Postgres implements the stores over database/sql with the pgx stdlib
// driver. Role and permission sets are resolved with per-entity queries on
// every user lookup, so authority resolution always sees current data.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Users() auth.UserStore             { return &pgUsers{db: p.db} }
func (p *Postgres) Roles() auth.RoleStore             { return &pgRoles{db: p.db} }
func (p *Postgres) Permissions() auth.PermissionStore { return &pgPermissions{db: p.db} }

// EnsureSchema creates the tables if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`create table if not exists users(
			id text primary key,
			username text not null unique,
			email text not null unique,
			password_hash text not null,
			enabled boolean not null default true,
			account_non_expired boolean not null default true,
			account_non_locked boolean not null default true,
			credentials_non_expired boolean not null default true,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now())`,
		`create table if not exists roles(
			id text primary key,
			name text not null unique,
			description text not null default '',
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now())`,
		`create table if not exists permissions(
			id text primary key,
			name text not null unique,
			description text not null default '',
			created_at timestamptz not null default now())`,
		`create table if not exists user_roles(
			user_id text not null references users(id) on delete cascade,
			role_id text not null references roles(id) on delete cascade,
			primary key(user_id, role_id))`,
		`create table if not exists role_permissions(
			role_id text not null references roles(id) on delete cascade,
			permission_id text not null references permissions(id) on delete cascade,
			primary key(role_id, permission_id))`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", auth.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

// --- users ---

type pgUsers struct{ db *sql.DB }

const userColumns = `id, username, email, password_hash, enabled,
	account_non_expired, account_non_locked, credentials_non_expired,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Enabled,
		&u.AccountNonExpired, &u.AccountNonLocked, &u.CredentialsNonExpired,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *pgUsers) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, password_hash, enabled,
			account_non_expired, account_non_locked, credentials_non_expired)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Enabled,
		u.AccountNonExpired, u.AccountNonLocked, u.CredentialsNonExpired,
	)
	if err != nil {
		return mapPGError(err)
	}
	return s.saveRoleAssignments(ctx, u)
}

func (s *pgUsers) saveRoleAssignments(ctx context.Context, u *auth.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id=$1`, u.ID); err != nil {
		return err
	}
	for _, role := range u.Roles {
		_, err := tx.ExecContext(ctx,
			`insert into user_roles(user_id, role_id)
			 select $1, id from roles where name=$2
			 on conflict do nothing`, u.ID, role.Name)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgUsers) find(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	u.Roles, err = rolesForUser(ctx, s.db, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *pgUsers) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.find(ctx, `id=$1`, id)
}

func (s *pgUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return s.find(ctx, `username=$1`, strings.TrimSpace(username))
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.find(ctx, `email=$1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *pgUsers) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Roles, err = rolesForUser(ctx, s.db, u.ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *pgUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where username=$1)`, strings.TrimSpace(username)).Scan(&exists)
	return exists, err
}

func (s *pgUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where email=$1)`, strings.ToLower(strings.TrimSpace(email))).Scan(&exists)
	return exists, err
}

func (s *pgUsers) Save(ctx context.Context, u *auth.User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set username=$2, email=$3, password_hash=$4, enabled=$5,
			account_non_expired=$6, account_non_locked=$7, credentials_non_expired=$8,
			updated_at=now()
		 where id=$1`,
		u.ID, u.Username, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Enabled,
		u.AccountNonExpired, u.AccountNonLocked, u.CredentialsNonExpired,
	)
	if err != nil {
		return mapPGError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return s.saveRoleAssignments(ctx, u)
}

func (s *pgUsers) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func rolesForUser(ctx context.Context, db *sql.DB, userID string) ([]auth.Role, error) {
	rows, err := db.QueryContext(ctx,
		`select r.id, r.name, r.description, r.created_at, r.updated_at
		 from roles r join user_roles ur on ur.role_id=r.id
		 where ur.user_id=$1 order by r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].Permissions, err = permissionsForRole(ctx, db, roles[i].ID); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func permissionsForRole(ctx context.Context, db *sql.DB, roleID string) ([]auth.Permission, error) {
	rows, err := db.QueryContext(ctx,
		`select p.id, p.name, p.description, p.created_at
		 from permissions p join role_permissions rp on rp.permission_id=p.id
		 where rp.role_id=$1 order by p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// --- roles ---

type pgRoles struct{ db *sql.DB }

func (s *pgRoles) Create(ctx context.Context, r *auth.Role) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, description) values($1,$2,$3)`,
		r.ID, r.Name, r.Description)
	if err != nil {
		return mapPGError(err)
	}
	return s.savePermissions(ctx, r)
}

func (s *pgRoles) savePermissions(ctx context.Context, r *auth.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, r.ID); err != nil {
		return err
	}
	for _, p := range r.Permissions {
		_, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id)
			 select $1, id from permissions where name=$2`, r.ID, p.Name)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgRoles) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description, created_at, updated_at from roles where name=$1`,
		strings.TrimSpace(name))
	var r auth.Role
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	var err error
	if r.Permissions, err = permissionsForRole(ctx, s.db, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *pgRoles) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, created_at, updated_at from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		var r auth.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Permissions, err = permissionsForRole(ctx, s.db, r.ID); err != nil {
			return nil, err
		}
	}
	return roles, nil
}

func (s *pgRoles) Save(ctx context.Context, r *auth.Role) error {
	res, err := s.db.ExecContext(ctx,
		`update roles set name=$2, description=$3, updated_at=now() where id=$1`,
		r.ID, r.Name, r.Description)
	if err != nil {
		return mapPGError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return s.savePermissions(ctx, r)
}

func (s *pgRoles) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// --- permissions ---

type pgPermissions struct{ db *sql.DB }

func (s *pgPermissions) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, name, description) values($1,$2,$3)
			 on conflict (name) do nothing`,
			p.ID, p.Name, p.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pgPermissions) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, created_at from permissions order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
