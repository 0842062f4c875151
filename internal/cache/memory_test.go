package cache

import (
	"bytes"
	"context"
	"testing"
)

func TestMemoryGetSetClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

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

func TestMemoryClearIsPartitionScoped(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	c.Set(ctx, "users", "alice", []byte("u"))
	c.Set(ctx, "roles", "ADMIN", []byte("r"))

	c.Clear(ctx, "users")

	if _, ok := c.Get(ctx, "users", "alice"); ok {
		t.Fatalf("expected users partition cleared")
	}
	if _, ok := c.Get(ctx, "roles", "ADMIN"); !ok {
		t.Fatalf("expected roles partition untouched")
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	value := []byte("original")
	c.Set(ctx, "users", "alice", value)
	value[0] = 'X'

	got, _ := c.Get(ctx, "users", "alice")
	if !bytes.Equal(got, []byte("original")) {
		t.Fatalf("cache must not alias caller buffers, got %q", got)
	}

	got[0] = 'Y'
	again, _ := c.Get(ctx, "users", "alice")
	if !bytes.Equal(again, []byte("original")) {
		t.Fatalf("cache must not alias returned buffers, got %q", again)
	}
}
