package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewLRUCache(4)
		if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := c.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "v" {
			t.Errorf("expected 'v', got %q", got)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		c := NewLRUCache(4)
		got, err := c.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil on miss, got %q", got)
		}
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		c := NewLRUCache(4)
		if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := c.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "v" {
			t.Errorf("zero-TTL entry missing, got %q", got)
		}
	})

	t.Run("ExpiredEntryIsMiss", func(t *testing.T) {
		c := NewLRUCache(4)
		if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		got, err := c.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected expiry, got %q", got)
		}
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c := NewLRUCache(2)
		c.Set(ctx, "a", []byte("1"), 0)
		c.Set(ctx, "b", []byte("2"), 0)
		// Touch "a" so "b" becomes the eviction candidate.
		c.Get(ctx, "a")
		c.Set(ctx, "c", []byte("3"), 0)

		if got, _ := c.Get(ctx, "b"); got != nil {
			t.Errorf("expected 'b' evicted, got %q", got)
		}
		if got, _ := c.Get(ctx, "a"); string(got) != "1" {
			t.Errorf("expected 'a' retained, got %q", got)
		}
		if size, cap := c.Stats(); size != 2 || cap != 2 {
			t.Errorf("unexpected stats: size=%d cap=%d", size, cap)
		}
	})

	t.Run("DefaultCapacity", func(t *testing.T) {
		c := NewLRUCache(0)
		for i := 0; i < 20; i++ {
			c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
		}
		if size, cap := c.Stats(); size != 8 || cap != 8 {
			t.Errorf("expected default capacity 8, got size=%d cap=%d", size, cap)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRUCache(4)
		c.Set(ctx, "k", []byte("v"), 0)
		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if got, _ := c.Get(ctx, "k"); got != nil {
			t.Errorf("expected miss after delete, got %q", got)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", MaxEntries: 8})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()
		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected *LRUCache, got %T", c)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		_, err := New(domain.CacheConfig{Type: "memcached"})
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
		}
	})
}
