package auth

import (
	"sort"
	"strings"
)

// RolePrefix marks role authorities. Permission authorities carry no prefix;
// the two namespaces must never be conflated.
const RolePrefix = "ROLE_"

// Identity is the request-scoped answer to "who is calling and what may
// they do". It is derived, never persisted: authorities are re-resolved
// from the store on every authentication and every verified request.
type Identity struct {
	UserID      string
	Username    string
	Email       string
	authorities map[string]struct{}
}

// NewIdentity builds an identity from a user with roles resolved.
func NewIdentity(user *User) Identity {
	id := Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		authorities: make(map[string]struct{}),
	}
	for _, a := range ResolveAuthorities(user) {
		id.authorities[a] = struct{}{}
	}
	return id
}

// IdentityFromClaims rebuilds an identity from token claim data. Used only
// where a live store lookup is impossible; authorization paths prefer
// NewIdentity over a freshly fetched user.
func IdentityFromClaims(subject string, authorities []string) Identity {
	id := Identity{
		Username:    subject,
		authorities: make(map[string]struct{}, len(authorities)),
	}
	for _, a := range authorities {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		id.authorities[a] = struct{}{}
	}
	return id
}

// HasAuthority reports whether the identity holds the exact authority
// string, role-prefixed or bare.
func (id Identity) HasAuthority(name string) bool {
	_, ok := id.authorities[name]
	return ok
}

// HasRole reports whether the identity holds the role, without the prefix.
func (id Identity) HasRole(name string) bool {
	return id.HasAuthority(RolePrefix + name)
}

// Authorities returns the flattened authority set, sorted for stable output.
func (id Identity) Authorities() []string {
	out := make([]string, 0, len(id.authorities))
	for a := range id.authorities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// ResolveAuthorities flattens a user's roles into authority strings:
// "ROLE_"+name for each role, plus the bare name of every permission those
// roles grant. Set semantics: a permission granted by two roles appears
// once, and the result does not depend on role iteration order.
func ResolveAuthorities(user *User) []string {
	set := make(map[string]struct{})
	for _, role := range user.Roles {
		set[RolePrefix+role.Name] = struct{}{}
		for _, perm := range role.Permissions {
			set[perm.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
