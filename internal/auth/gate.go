package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UserLookup is the slice of the user store the gate needs.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// AuditSink observes authentication outcomes. It is not a control-flow
// dependency: sink failures never affect the authentication result.
type AuditSink interface {
	LoginSucceeded(ctx context.Context, username string)
	LoginFailed(ctx context.Context, username, reason string)
}

// Session is a successful authentication: the resolved identity plus the
// freshly issued bearer token.
type Session struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// Gate validates submitted credentials and issues tokens. Lookup, hash
// verification and issuance are synchronous and bounded; there is no state
// beyond the injected collaborators.
type Gate struct {
	users  UserLookup
	hasher *PasswordHasher
	tokens *TokenService
	audit  AuditSink
}

// NewGate wires the gate; audit may be nil.
func NewGate(users UserLookup, hasher *PasswordHasher, tokens *TokenService, audit AuditSink) *Gate {
	return &Gate{users: users, hasher: hasher, tokens: tokens, audit: audit}
}

// Authenticate checks the credentials and on success returns a session.
// A missing user and a wrong password are indistinguishable to the caller.
func (g *Gate) Authenticate(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		g.loginFailed(ctx, username, "missing credentials")
		return Session{}, ErrBadCredentials
	}

	user, err := g.users.FindByUsername(ctx, username)
	if err != nil {
		g.loginFailed(ctx, username, "unknown user")
		return Session{}, ErrBadCredentials
	}
	if err := g.hasher.Verify(user.PasswordHash, password); err != nil {
		g.loginFailed(ctx, username, "password mismatch")
		return Session{}, ErrBadCredentials
	}
	if reason, ok := AccountDisabledReason(user); ok {
		g.loginFailed(ctx, username, reason)
		return Session{}, fmt.Errorf("%w: %s", ErrAccountDisabled, reason)
	}

	identity := NewIdentity(user)
	token, expiresAt, err := g.tokens.Issue(user.Username, identity.Authorities())
	if err != nil {
		g.loginFailed(ctx, username, "token issuance failed")
		return Session{}, err
	}

	if g.audit != nil {
		g.audit.LoginSucceeded(ctx, username)
	}
	return Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

func (g *Gate) loginFailed(ctx context.Context, username, reason string) {
	if g.audit != nil {
		g.audit.LoginFailed(ctx, username, reason)
	}
}

// AccountDisabledReason reports why an account cannot be used, if any.
// The same checks run at login and on every token-authenticated request,
// so disabling an account takes effect before its tokens expire.
func AccountDisabledReason(user *User) (string, bool) {
	switch {
	case !user.Enabled:
		return "disabled", true
	case !user.AccountNonLocked:
		return "locked", true
	case !user.AccountNonExpired:
		return "account expired", true
	case !user.CredentialsNonExpired:
		return "credentials expired", true
	default:
		return "", false
	}
}
