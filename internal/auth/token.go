package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the issuance lifetime used when no TTL is configured.
const DefaultTokenTTL = 24 * time.Hour

const defaultIssuer = "accessd"

// Claims is the decoded payload of a verified token. Authorities travel as
// a single comma-joined claim; tokens are a snapshot, the live authority
// set is always re-resolved from the store at request time.
type Claims struct {
	Authorities string `json:"authorities"`
	jwt.RegisteredClaims
}

// AuthorityList splits the authorities claim back into individual strings.
func (c *Claims) AuthorityList() []string {
	if strings.TrimSpace(c.Authorities) == "" {
		return nil
	}
	parts := strings.Split(c.Authorities, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TokenService issues and verifies signed bearer tokens. The signing key is
// derived once from the configured secret and is immutable afterwards, so
// concurrent verifications share it without locking. Tokens are stateless:
// validity is entirely signature + expiry, and a compromised token cannot
// be revoked before expiry short of rotating the key.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService derives the signing key from secret. An empty secret is a
// configuration error and fatal at startup, not per call.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSigningSecret
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token carrying the subject and its flattened authorities.
func (s *TokenService) Issue(subject string, authorities []string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Authorities: strings.Join(authorities, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses the token, checks the signature and then the expiry, and
// returns the claims. Failures map onto the token error taxonomy; every
// variant means "unauthenticated", never a hard failure.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenEmpty
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS512 {
			return nil, ErrTokenUnsupported
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenUnsupported):
			return nil, ErrTokenUnsupported
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	// The library treats a token at its exact expiry instant as still
	// valid; the contract here is expiry at the tick.
	if claims.ExpiresAt == nil || !s.now().UTC().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// SubjectOf extracts the subject from a token, assuming a prior successful
// Verify. It re-verifies rather than trusting the caller.
func (s *TokenService) SubjectOf(raw string) (string, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
