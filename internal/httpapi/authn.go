package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"accessd.org/internal/auth"
	"accessd.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withIdentity resolves the bearer token, if any, into a request identity.
// The token is only a proof of authentication: the authority set is
// re-resolved from the store on every request, so role changes take effect
// without waiting for token expiry. Any failure leaves the request
// anonymous; route requirements decide whether anonymous is acceptable.
func (a *API) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r.Header.Get(authHeader))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				obs.ObserveTokenVerification("expired")
			default:
				obs.ObserveTokenVerification("invalid")
			}
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.users.FindByUsername(r.Context(), claims.Subject)
		if err != nil {
			// Token outlived the account; treat as anonymous.
			obs.ObserveTokenVerification("user_gone")
			next.ServeHTTP(w, r)
			return
		}
		if _, disabled := auth.AccountDisabledReason(user); disabled {
			obs.ObserveTokenVerification("user_gone")
			next.ServeHTTP(w, r)
			return
		}

		obs.ObserveTokenVerification("valid")
		ctx := auth.ContextWithIdentity(r.Context(), auth.NewIdentity(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require guards a handler with an access requirement: 401 when anonymous,
// 403 when authenticated but not satisfying the rule.
func (a *API) require(req auth.Requirement, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if req.Satisfied(id) {
			next(w, r)
			return
		}
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if a.audit != nil {
			a.audit.AccessDenied(r.Context(), id.Username, req.String(), r.URL.Path)
		}
		writeError(w, r, http.StatusForbidden,
			fmt.Sprintf("access denied: requires %s", req))
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// match is case sensitive: "bearer x" is not a bearer token here.
func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
