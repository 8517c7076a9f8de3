package cache

import (
	"context"
	"testing"
	"time"

	"homestay/internal/app/middleware"
)

func put(t *testing.T, c middleware.Cache, key, value string, tags ...string) {
	t.Helper()
	ctx := context.Background()
	stamp, err := c.Stamp(ctx, tags)
	if err != nil {
		t.Fatalf("stamp: %v", err)
	}
	if kept, err := c.Set(ctx, key, []byte(value), stamp, time.Minute); err != nil || !kept {
		t.Fatalf("set %s: kept=%v err=%v", key, kept, err)
	}
}

func TestMemoryInvalidateByTag(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	put(t, c, "a", "1", "listing:loft")
	put(t, c, "b", "2", "listing:barn")

	if err := c.Invalidate(ctx, "listing:loft"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Fatal("tagged entry should be gone")
	}
	if v, hit, _ := c.Get(ctx, "b"); !hit || string(v) != "2" {
		t.Fatalf("other entry should survive, got %q %v", v, hit)
	}
}

func TestMemorySetRejectsStaleStamp(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	stamp, _ := c.Stamp(ctx, []string{"listing:loft"})

	// the listing changes while the answer is being computed
	if err := c.Invalidate(ctx, "listing:loft"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	kept, err := c.Set(ctx, "a", []byte("old"), stamp, time.Minute)
	if err != nil || kept {
		t.Fatalf("stale answer must be dropped, kept=%v err=%v", kept, err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Fatal("stale answer was stored")
	}
	put(t, c, "a", "new", "listing:loft")
	if v, hit, _ := c.Get(ctx, "a"); !hit || string(v) != "new" {
		t.Fatalf("fresh answer should be stored, got %q %v", v, hit)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }
	put(t, c, "a", "1")

	now = now.Add(59 * time.Second)
	if _, hit, _ := c.Get(ctx, "a"); !hit {
		t.Fatal("entry should still be fresh")
	}
	now = now.Add(time.Second)
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Fatal("entry should have expired")
	}
}

func TestParseGeneration(t *testing.T) {
	if g, err := parseGeneration(nil); err != nil || g != 0 {
		t.Fatalf("missing counter should read as 0, got %d %v", g, err)
	}
	if g, err := parseGeneration("7"); err != nil || g != 7 {
		t.Fatalf("unexpected %d %v", g, err)
	}
	if _, err := parseGeneration(int64(1)); err == nil {
		t.Fatal("expected error for unexpected type")
	}
}
