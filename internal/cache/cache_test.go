package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || val != "v" {
		t.Fatalf("expected v, got %q ok=%v", val, ok)
	}
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok, _ := c.Get(ctx, "k")
	if ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestMemory_Delete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Minute)
	_ = c.Delete(ctx, "k")
	_, ok, _ := c.Get(ctx, "k")
	if ok {
		t.Fatalf("expected entry to be deleted")
	}
}

func TestNewAuto_EmptyAddrReturnsMemory(t *testing.T) {
	c := NewAuto("")
	if _, ok := c.(*Memory); !ok {
		t.Fatalf("expected Memory cache for empty addr")
	}
}

func TestNewAuto_AddrReturnsRedis(t *testing.T) {
	c := NewAuto("localhost:6379")
	if _, ok := c.(*Redis); !ok {
		t.Fatalf("expected Redis cache for non-empty addr")
	}
}
