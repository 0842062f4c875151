package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"accessd.org/internal/auth"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer   spaced  ", "spaced", true},
		{"", "", false},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"bearer abc.def.ghi", "", false},
		{"Bearer\tabc.def.ghi", "", false},
		{"BEARER abc.def.ghi", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
	}

	for _, tc := range cases {
		got, ok := bearerToken(tc.header)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRequireAnonymousGets401(t *testing.T) {
	a := &API{}
	handler := a.require(auth.Authenticated(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer, got %q", got)
	}
}

func TestRequireInsufficientAuthorityGets403(t *testing.T) {
	a := &API{}
	handler := a.require(auth.HasRole("ADMIN"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	id := auth.IdentityFromClaims("alice", []string{"ROLE_USER"})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), id))

	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireSatisfiedPassesThrough(t *testing.T) {
	a := &API{}
	handler := a.require(auth.HasAuthority(auth.PermUserRead), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	id := auth.IdentityFromClaims("alice", []string{"ROLE_USER", auth.PermUserRead})
	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), id))

	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected handler to run, got %d", rr.Code)
	}
}
