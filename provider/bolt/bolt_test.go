package bolt

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func openTest(t *testing.T, clk *fakeClock) *Provider {
	t.Helper()
	p, err := Open(Config{Path: filepath.Join(t.TempDir(), "cache.bbolt"), Now: clk.Now})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestBoltGetSetDel(t *testing.T) {
	ctx := context.Background()
	p := openTest(t, &fakeClock{now: time.Unix(1000, 0)})

	if _, ok, err := p.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestBoltEmptyValueIsAHit(t *testing.T) {
	ctx := context.Background()
	p := openTest(t, &fakeClock{now: time.Unix(1000, 0)})

	if _, err := p.Set(ctx, "empty", nil, 1, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := p.Get(ctx, "empty")
	if err != nil || !ok || len(got) != 0 {
		t.Fatalf("Get empty: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestBoltTTLAndSweep(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	p := openTest(t, clk)

	if _, err := p.Set(ctx, "short", []byte("a"), 1, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := p.Set(ctx, "long", []byte("b"), 1, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := p.Set(ctx, "forever", []byte("c"), 1, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clk.Advance(2 * time.Second)

	if _, ok, _ := p.Get(ctx, "short"); ok {
		t.Fatalf("expected short to be expired")
	}
	if _, ok, _ := p.Get(ctx, "long"); !ok {
		t.Fatalf("expected long to survive")
	}

	clk.Advance(2 * time.Hour)
	n, err := p.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, ok, _ := p.Get(ctx, "forever"); !ok {
		t.Fatalf("entry without TTL must survive sweep")
	}
}

func TestBoltExpiredDeleteKeepsRewrite(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	p := openTest(t, clk)

	if _, err := p.Set(ctx, "k", []byte("old"), 1, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(2 * time.Second)
	// A writer replaced the expired value after a reader saw it expire.
	if _, err := p.Set(ctx, "k", []byte("new"), 1, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := p.deleteIfExpired("k"); err != nil {
		t.Fatalf("deleteIfExpired: %v", err)
	}
	if got, ok, _ := p.Get(ctx, "k"); !ok || string(got) != "new" {
		t.Fatalf("rewrite was deleted: %q %v", got, ok)
	}

	clk.Advance(2 * time.Minute)
	if err := p.deleteIfExpired("k"); err != nil {
		t.Fatalf("deleteIfExpired: %v", err)
	}
	if n, _ := p.Sweep(ctx); n != 0 {
		t.Fatalf("expired entry should already be gone, sweep removed %d", n)
	}
}

func TestBoltCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1000, 0)}
	p := openTest(t, clk)

	if ok, err := p.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), 0); err != nil || ok {
		t.Fatalf("swap on missing key: ok=%v err=%v", ok, err)
	}
	if _, err := p.Set(ctx, "k", []byte("a"), 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if ok, _ := p.CompareAndSwap(ctx, "k", []byte("x"), []byte("b"), time.Minute); ok {
		t.Fatalf("swap must fail on a different value")
	}
	if ok, err := p.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), time.Minute); err != nil || !ok {
		t.Fatalf("swap: ok=%v err=%v", ok, err)
	}
	if got, _, _ := p.Get(ctx, "k"); string(got) != "b" {
		t.Fatalf("after swap got %q", got)
	}

	if ok, _ := p.CompareAndDelete(ctx, "k", []byte("a")); ok {
		t.Fatalf("delete must fail on a stale value")
	}
	if ok, err := p.CompareAndDelete(ctx, "k", []byte("b")); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("key should be gone")
	}
}
