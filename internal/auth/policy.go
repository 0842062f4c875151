package auth

import "fmt"

type requirementKind int

const (
	reqPublic requirementKind = iota
	reqAuthenticated
	reqRole
	reqAuthority
)

// Requirement is a declarative access rule attached to a protected
// operation. Role requirements match the "ROLE_"-prefixed namespace,
// authority requirements match bare permission names; the two are distinct
// on purpose.
type Requirement struct {
	kind requirementKind
	name string
}

// Public always allows, identity or not.
func Public() Requirement { return Requirement{kind: reqPublic} }

// Authenticated requires any identity.
func Authenticated() Requirement { return Requirement{kind: reqAuthenticated} }

// HasRole requires "ROLE_"+name in the authority set.
func HasRole(name string) Requirement { return Requirement{kind: reqRole, name: name} }

// HasAuthority requires the exact authority string, unprefixed.
func HasAuthority(name string) Requirement { return Requirement{kind: reqAuthority, name: name} }

// Satisfied is the pure access predicate; a nil identity is anonymous.
func (r Requirement) Satisfied(id *Identity) bool {
	switch r.kind {
	case reqPublic:
		return true
	case reqAuthenticated:
		return id != nil
	case reqRole:
		return id != nil && id.HasRole(r.name)
	case reqAuthority:
		return id != nil && id.HasAuthority(r.name)
	default:
		return false
	}
}

func (r Requirement) String() string {
	switch r.kind {
	case reqPublic:
		return "public"
	case reqAuthenticated:
		return "authenticated"
	case reqRole:
		return fmt.Sprintf("role %s", r.name)
	case reqAuthority:
		return fmt.Sprintf("authority %s", r.name)
	default:
		return "unknown"
	}
}
