package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-secret-for-token-tests", opts...)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	authorities := []string{"ROLE_USER", "USER_READ"}
	token, expiresAt, err := svc.Issue("alice", authorities)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %q", claims.Subject)
	}
	got := claims.AuthorityList()
	if len(got) != 2 || got[0] != "ROLE_USER" || got[1] != "USER_READ" {
		t.Fatalf("unexpected authorities: %v", got)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id claim")
	}
}

func TestTokenEmptyAuthorities(t *testing.T) {
	svc := newTestTokenService(t)

	token, _, err := svc.Issue("bob", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := claims.AuthorityList(); len(got) != 0 {
		t.Fatalf("expected no authorities, got %v", got)
	}
}

func TestTokenExpiresExactlyAtDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t,
		WithTTL(time.Hour),
		WithClock(func() time.Time { return now }),
	)

	token, expiresAt, err := svc.Issue("alice", []string{"ROLE_USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// one second before the deadline: valid
	now = expiresAt.Add(-time.Second)
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("expected valid before expiry, got %v", err)
	}

	// exactly at the deadline: expired
	now = expiresAt
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at deadline, got %v", err)
	}

	now = expiresAt.Add(time.Second)
	if _, err := svc.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after deadline, got %v", err)
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	svc := newTestTokenService(t)

	token, _, err := svc.Issue("alice", []string{"ROLE_USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected three token segments, got %d", len(parts))
	}
	sig := parts[2]
	if strings.ContainsRune(sig, 'A') {
		sig = strings.Replace(sig, "A", "B", 1)
	} else {
		sig = strings.Replace(sig, string(sig[0]), "A", 1)
	}
	tampered := parts[0] + "." + parts[1] + "." + sig

	if _, err := svc.Verify(tampered); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService("a-completely-different-secret")
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	token, _, err := svc.Issue("alice", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	svc := newTestTokenService(t)

	for _, raw := range []string{"not-a-token", "a.b", "a.b.c.d", "%%%.###.!!!"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Verify(%q): expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestTokenEmpty(t *testing.T) {
	svc := newTestTokenService(t)

	for _, raw := range []string{"", "   "} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenEmpty) {
			t.Fatalf("Verify(%q): expected ErrTokenEmpty, got %v", raw, err)
		}
	}
}

func TestTokenUnsupportedAlgorithm(t *testing.T) {
	svc := newTestTokenService(t)

	// Same secret, different signing method.
	claims := Claims{
		Authorities: "ROLE_USER",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("test-secret-for-token-tests"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Verify(raw); !errors.Is(err, ErrTokenUnsupported) {
		t.Fatalf("expected ErrTokenUnsupported, got %v", err)
	}
}

func TestTokenMissingSubject(t *testing.T) {
	svc := newTestTokenService(t)

	if _, _, err := svc.Issue("   ", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService(""); !errors.Is(err, ErrMissingSigningSecret) {
		t.Fatalf("expected ErrMissingSigningSecret, got %v", err)
	}
	if _, err := NewTokenService("   "); !errors.Is(err, ErrMissingSigningSecret) {
		t.Fatalf("expected ErrMissingSigningSecret, got %v", err)
	}
}

func TestSubjectOf(t *testing.T) {
	svc := newTestTokenService(t)

	token, _, err := svc.Issue("carol", []string{"ROLE_USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := svc.SubjectOf(token)
	if err != nil {
		t.Fatalf("subject of: %v", err)
	}
	if subject != "carol" {
		t.Fatalf("expected carol, got %q", subject)
	}
	if _, err := svc.SubjectOf("garbage"); err == nil {
		t.Fatalf("expected error for garbage token")
	}
}
