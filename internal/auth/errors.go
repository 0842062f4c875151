package auth

import "errors"

// Store errors.
var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)

// Authentication errors. Missing user and wrong password both collapse into
// ErrBadCredentials so the login response cannot be used to enumerate
// usernames. ErrAccountDisabled is wrapped with the specific reason.
var (
	ErrBadCredentials  = errors.New("auth: bad credentials")
	ErrAccountDisabled = errors.New("auth: account disabled")
)

// Token verification errors. All are non-fatal; callers treat any of them
// as "unauthenticated".
var (
	ErrTokenEmpty       = errors.New("auth: token is empty")
	ErrTokenMalformed   = errors.New("auth: token is malformed")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenSignature   = errors.New("auth: invalid token signature")
	ErrTokenUnsupported = errors.New("auth: unsupported token")
)

// ErrMissingSigningSecret is fatal at startup: the token service cannot be
// constructed without a signing secret.
var ErrMissingSigningSecret = errors.New("auth: signing secret is not configured")

// ErrDenied is returned when an identity does not satisfy a requirement.
var ErrDenied = errors.New("auth: access denied")
