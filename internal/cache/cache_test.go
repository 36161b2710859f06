package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	if err := c.Set(ctx, "k", []byte("payload"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, hit, err := c.Get(ctx, "k")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if string(value) != "payload" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if err := c.Set(ctx, "short", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "short"); !hit {
		t.Fatal("entry should be live before its TTL")
	}
	time.Sleep(25 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Fatal("entry should have expired")
	}
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	keys := []string{
		"composition:assets/a.js|s1",
		"composition:assets/a.js|s2",
		"composition:assets/b.js|s1",
	}
	for _, k := range keys {
		if err := c.Set(ctx, k, []byte("v"), 0); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	if err := c.DeletePrefix(ctx, "composition:assets/a.js|"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	for _, k := range keys[:2] {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Fatalf("key %s should be gone", k)
		}
	}
	if _, hit, _ := c.Get(ctx, keys[2]); !hit {
		t.Fatal("unrelated key should survive a prefix delete")
	}
}

func TestMemoryCacheFlush(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Fatalf("key %s should be gone after flush", k)
		}
	}
}
