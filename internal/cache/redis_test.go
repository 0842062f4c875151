package cache

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := NewRedis(srv.Addr(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisGetSetClear(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	if _, ok := c.Get(ctx, "users", "alice"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Set(ctx, "users", "alice", []byte("v1"))
	got, ok := c.Get(ctx, "users", "alice")
	if !ok || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("expected v1, got %q (hit=%v)", got, ok)
	}

	c.Clear(ctx, "users")
	if _, ok := c.Get(ctx, "users", "alice"); ok {
		t.Fatalf("expected miss after clear")
	}
}

func TestRedisClearIsPartitionScoped(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	c.Set(ctx, "users", "alice", []byte("u"))
	c.Set(ctx, "users", "bob", []byte("u2"))
	c.Set(ctx, "roles", "ADMIN", []byte("r"))

	c.Clear(ctx, "users")

	if _, ok := c.Get(ctx, "users", "alice"); ok {
		t.Fatalf("expected users partition cleared")
	}
	if _, ok := c.Get(ctx, "users", "bob"); ok {
		t.Fatalf("expected whole users partition cleared")
	}
	if _, ok := c.Get(ctx, "roles", "ADMIN"); !ok {
		t.Fatalf("expected roles partition untouched")
	}
}

func TestRedisEntriesCarryTTL(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	c, err := NewRedis(srv.Addr(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	c.Set(ctx, "users", "alice", []byte("v1"))

	if ttl := srv.TTL("users:alice"); ttl != defaultEntryTTL {
		t.Fatalf("expected ttl %v, got %v", defaultEntryTTL, ttl)
	}

	srv.FastForward(defaultEntryTTL)
	if _, ok := c.Get(ctx, "users", "alice"); ok {
		t.Fatalf("expected entry expired")
	}
}

func TestRedisUnreachableBackendDegrades(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	c, err := NewRedis(srv.Addr(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	c.Set(ctx, "users", "alice", []byte("v1"))
	srv.Close()

	// A dead backend means misses and swallowed writes, never a panic.
	if _, ok := c.Get(ctx, "users", "alice"); ok {
		t.Fatalf("expected miss with backend down")
	}
	c.Set(ctx, "users", "bob", []byte("v2"))
	c.Clear(ctx, "users")
}

func TestNewRedisRejectsUnreachableAddr(t *testing.T) {
	if _, err := NewRedis("127.0.0.1:1", ""); err == nil {
		t.Fatalf("expected connection error")
	}
}
