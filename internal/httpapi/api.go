// Package httpapi is the HTTP layer: routing, authentication middleware and
// the JSON handlers. Access rules live in the route table, one requirement
// per protected operation.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accessd.org/internal/audit"
	"accessd.org/internal/auth"
	"accessd.org/internal/obs"
)

// ReadyProbe checks the backing store; a nil DB means the in-memory store
// is in use and the service is always ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux    *chi.Mux
	users  auth.UserStore
	roles  auth.RoleStore
	perms  auth.PermissionStore
	gate   *auth.Gate
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
	audit  *audit.Recorder

	readyProbe ReadyProbe
	version    string
	devSecret  bool
}

// Credential endpoints get a tighter per-IP budget than the rest of the
// surface; everything else is only bounded by server timeouts.
const (
	defaultAuthBurst     = 20
	defaultAuthPerSecond = 10
)

// Options carries the API's collaborators.
type Options struct {
	Users       auth.UserStore
	Roles       auth.RoleStore
	Permissions auth.PermissionStore
	Gate        *auth.Gate
	Tokens      *auth.TokenService
	Hasher      *auth.PasswordHasher
	Audit       *audit.Recorder
	ReadyProbe  ReadyProbe
	Version     string
	DevSecret   bool

	// AuthBurst and AuthPerSecond override the default per-IP budget on
	// /v1/auth when positive.
	AuthBurst     int
	AuthPerSecond int
}

func New(opts Options) *API {
	a := &API{
		mux:        chi.NewRouter(),
		users:      opts.Users,
		roles:      opts.Roles,
		perms:      opts.Permissions,
		gate:       opts.Gate,
		tokens:     opts.Tokens,
		hasher:     opts.Hasher,
		audit:      opts.Audit,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
		devSecret:  opts.DevSecret,
	}

	authBurst, authPerSecond := opts.AuthBurst, opts.AuthPerSecond
	if authBurst <= 0 {
		authBurst = defaultAuthBurst
	}
	if authPerSecond <= 0 {
		authPerSecond = defaultAuthPerSecond
	}

	r := a.mux
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(a.withIdentity)

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics, operators only
	r.Method(http.MethodGet, "/metrics",
		a.require(auth.HasRole("ADMIN"), obs.Handler().ServeHTTP))
	r.Get("/v1/security-info",
		a.require(auth.HasRole("ADMIN"), a.SecurityInfo))

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(RateLimit(authBurst, authPerSecond))
		r.Post("/login", a.handleLogin)
		r.Post("/register", a.handleRegister)
	})

	r.Route("/v1/users", func(r chi.Router) {
		r.Get("/", a.require(auth.HasAuthority(auth.PermUserRead), a.handleListUsers))
		r.Get("/{id}", a.require(auth.HasAuthority(auth.PermUserRead), a.handleGetUser))
		r.Delete("/{id}", a.require(auth.HasAuthority(auth.PermUserDelete), a.handleDeleteUser))
		r.Get("/by-username/{username}",
			a.require(auth.HasAuthority(auth.PermUserRead), a.handleGetUserByUsername))
		r.Post("/change-password",
			a.require(auth.Authenticated(), a.handleChangePassword))
	})

	r.Get("/v1/roles", a.require(auth.HasAuthority(auth.PermRoleRead), a.handleListRoles))
	r.Get("/v1/permissions",
		a.require(auth.HasAuthority(auth.PermPermissionRead), a.handleListPermissions))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return a
}

// Handler returns the server handler with metrics instrumentation on the
// outside of the chain.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}
