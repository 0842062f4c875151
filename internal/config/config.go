package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"accessd.org/internal/auth"
)

// devSigningSecret keeps local setups working without configuration.
// It is an insecure, documented default: production deployments must set
// ACCESSD_JWT_SECRET, and the service reports when the default is in use.
const devSigningSecret = "defaultSecretKeyForDevelopmentEnvironmentOnly"

type Config struct {
	Addr          string
	JWTSecret     string
	JWTTTL        time.Duration
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	Seed          bool
	BcryptCost    int

	// DevSecret is true when the development fallback secret is active.
	DevSecret bool
}

// Load reads configuration from the environment, pulling in a .env file
// when ENV=dev.
func Load() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	secret := strings.TrimSpace(os.Getenv("ACCESSD_JWT_SECRET"))
	devSecret := secret == ""
	if devSecret {
		secret = devSigningSecret
	}

	return Config{
		Addr:          getEnv("ACCESSD_ADDR", ":8080"),
		JWTSecret:     secret,
		JWTTTL:        ttlFromMillis(os.Getenv("ACCESSD_JWT_TTL_MS")),
		PGDSN:         os.Getenv("ACCESSD_PG_DSN"),
		RedisAddr:     os.Getenv("ACCESSD_REDIS_ADDR"),
		RedisPassword: os.Getenv("ACCESSD_REDIS_PASSWORD"),
		Seed:          getEnv("ACCESSD_SEED", "") == "true",
		BcryptCost:    getEnvInt("ACCESSD_BCRYPT_COST", 0),
		DevSecret:     devSecret,
	}
}

// SeedEnabled reports whether default roles and accounts should be created
// on startup. The in-memory store starts empty on every run, so it is
// always seeded; a persistent store is seeded only on explicit opt-in.
func (c Config) SeedEnabled() bool {
	return c.Seed || c.PGDSN == ""
}

func ttlFromMillis(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return auth.DefaultTokenTTL
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return auth.DefaultTokenTTL
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}
