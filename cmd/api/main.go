package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"accessd.org/internal/audit"
	"accessd.org/internal/auth"
	"accessd.org/internal/cache"
	"accessd.org/internal/config"
	"accessd.org/internal/httpapi"
	"accessd.org/internal/obs"
	"accessd.org/internal/seed"
	"accessd.org/internal/store"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()
	if cfg.DevSecret {
		log.Printf("WARNING: ACCESSD_JWT_SECRET is not set, using the development secret")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.WithTTL(cfg.JWTTTL))
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	// Cache: redis when configured, in-process otherwise.
	var entries cache.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		entries = rc
	} else {
		entries = cache.NewMemory()
	}

	// Store: postgres when a DSN is configured, in-memory otherwise.
	var (
		db    *sql.DB
		users auth.UserStore
		roles auth.RoleStore
		perms auth.PermissionStore
	)
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		pg := store.NewPostgres(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("ensure schema: %v", err)
		}
		cancel()
		users, roles, perms = pg.Users(), pg.Roles(), pg.Permissions()
	} else {
		mem := store.NewMemory()
		users, roles, perms = mem.Users(), mem.Roles(), mem.Permissions()
	}

	inv := store.NewInvalidator(entries)
	users = store.NewCachedUsers(users, entries, inv)
	roles = store.NewCachedRoles(roles, entries, inv)

	if cfg.SeedEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := seed.Run(ctx, seed.Stores{Users: users, Roles: roles, Permissions: perms}, hasher); err != nil {
			cancel()
			log.Fatalf("seed: %v", err)
		}
		cancel()
	}

	recorder := audit.NewRecorder()
	gate := auth.NewGate(users, hasher, tokens, recorder)

	api := httpapi.New(httpapi.Options{
		Users:       users,
		Roles:       roles,
		Permissions: perms,
		Gate:        gate,
		Tokens:      tokens,
		Hasher:      hasher,
		Audit:       recorder,
		ReadyProbe:  httpapi.ReadyProbe{DB: db},
		Version:     version,
		DevSecret:   cfg.DevSecret,
	})

	handler := httpapi.MaxBodyBytes(api.Handler(), 1<<20)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting accessd %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
