package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

func newEntry(sender, vendor string, ttl time.Duration) *core.VendorCacheEntry {
	now := time.Now()
	return &core.VendorCacheEntry{
		SenderEmail: sender,
		Vendor:      vendor,
		Confidence:  0.9,
		LastSeen:    now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	if err := c.Set(ctx, newEntry("billing@acme.com", "Acme Corp", time.Hour)); err != nil {
		t.Fatal(err)
	}

	entry, err := c.Get(ctx, "billing@acme.com")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Vendor != "Acme Corp" {
		t.Errorf("vendor = %q", entry.Vendor)
	}

	if _, err := c.Get(ctx, "unknown@acme.com"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	if err := c.Set(ctx, newEntry("billing@acme.com", "Acme Corp", -time.Minute)); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, "billing@acme.com"); err != ErrNotFound {
		t.Errorf("expired entry: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	_ = c.Set(ctx, newEntry("billing@acme.com", "Acme Corp", time.Hour))
	if err := c.Delete(ctx, "billing@acme.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "billing@acme.com"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestMemoryCacheCleanup(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Hour)
	defer c.Stop()
	ctx := context.Background()

	_ = c.Set(ctx, newEntry("live@acme.com", "Acme", time.Hour))
	_ = c.Set(ctx, newEntry("stale@acme.com", "Stale", -time.Minute))

	if err := c.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, "live@acme.com"); err != nil {
		t.Errorf("live entry should survive cleanup: %v", err)
	}
	c.mu.RLock()
	_, staleExists := c.entries["stale@acme.com"]
	c.mu.RUnlock()
	if staleExists {
		t.Error("stale entry should be removed by cleanup")
	}
}
