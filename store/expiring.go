package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/cacheaside/internal/wire"
	pr "github.com/unkn0wn-root/cacheaside/provider"
)

// CostFunc prices a framed entry for providers that account by cost.
type CostFunc func(key string, raw []byte) int64

// Config tunes Expiring. Only Provider is required.
type Config struct {
	Provider pr.Provider
	Clock    Clock    // nil => time.Now
	Cost     CostFunc // nil => 1 per entry

	// OnSelfHeal is called when Get drops an entry.
	// reason ∈ {"corrupt", "expired_absolute", "expired_sliding"}
	OnSelfHeal func(key, reason string)
}

// Expiring implements Store over a TTL-only provider. Each value is framed
// with its ceiling, sliding window and last-touch time; Get validates the
// frame against the clock and re-writes it to slide the window.
//
// The provider TTL is only a garbage-collection hint. Expiry decisions are
// made here, so providers without per-entry TTL (bigcache) still honor
// per-entry policies.
//
// A refresh or drop must never clobber a newer Set. Providers implementing
// provider.Swapper get conditional writes; for the rest, Get and Set on one
// key are serialized through a striped lock, which only covers writers
// sharing this Expiring.
type Expiring struct {
	p        pr.Provider
	swap     pr.Swapper // nil => stripes
	now      Clock
	cost     CostFunc
	selfHeal func(key, reason string)

	stripes [lockStripes]sync.Mutex
}

const lockStripes = 64

var _ Store = (*Expiring)(nil)

func NewExpiring(cfg Config) (*Expiring, error) {
	if cfg.Provider == nil {
		return nil, errors.New("store: provider is required")
	}
	s := &Expiring{
		p:        cfg.Provider,
		swap:     asSwapper(cfg.Provider),
		now:      cfg.Clock,
		cost:     cfg.Cost,
		selfHeal: cfg.OnSelfHeal,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cost == nil {
		s.cost = func(string, []byte) int64 { return 1 }
	}
	if s.selfHeal == nil {
		s.selfHeal = func(string, string) {}
	}
	return s, nil
}

func asSwapper(p pr.Provider) pr.Swapper {
	sw, _ := p.(pr.Swapper)
	return sw
}

func (s *Expiring) stripe(key string) *sync.Mutex {
	return &s.stripes[xxhash.Sum64String(key)%lockStripes]
}

func (s *Expiring) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.swap == nil {
		mu := s.stripe(key)
		mu.Lock()
		defer mu.Unlock()
	}

	raw, ok, err := s.p.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	e, err := wire.Decode(raw)
	if err != nil {
		s.drop(ctx, key, raw, "corrupt")
		return nil, false, nil
	}

	now := s.now()
	if reason := expiredReason(e, now); reason != "" {
		s.drop(ctx, key, raw, reason)
		return nil, false, nil
	}

	if e.Sliding > 0 {
		// slide: best-effort, a failed refresh only shortens the entry's life
		e.Touched = now
		framed := wire.Encode(e)
		ttl := ttlFor(now, e.AbsoluteExpiresAt, e.Sliding)
		if s.swap != nil {
			_, _ = s.swap.CompareAndSwap(ctx, key, raw, framed, ttl)
		} else {
			_, _ = s.p.Set(ctx, key, framed, s.cost(key, framed), ttl)
		}
	}
	return e.Payload, true, nil
}

// Set writes value under key. A ceiling already in the past writes nothing
// and returns ErrExpired.
func (s *Expiring) Set(ctx context.Context, key string, value []byte, opts Options) error {
	now := s.now()
	if !opts.AbsoluteExpiresAt.IsZero() && !now.Before(opts.AbsoluteExpiresAt) {
		return ErrExpired
	}
	framed := wire.Encode(wire.Entry{
		AbsoluteExpiresAt: opts.AbsoluteExpiresAt,
		Sliding:           opts.SlidingWindow,
		Touched:           now,
		Payload:           value,
	})
	if s.swap == nil {
		mu := s.stripe(key)
		mu.Lock()
		defer mu.Unlock()
	}
	ok, err := s.p.Set(ctx, key, framed, s.cost(key, framed), ttlFor(now, opts.AbsoluteExpiresAt, opts.SlidingWindow))
	if err != nil {
		return err
	}
	if !ok {
		return ErrRejected
	}
	return nil
}

func (s *Expiring) Close(ctx context.Context) error {
	return s.p.Close(ctx)
}

// drop deletes the entry read as raw. Callers without a Swapper hold the
// key's stripe.
func (s *Expiring) drop(ctx context.Context, key string, raw []byte, reason string) {
	if s.swap != nil {
		if deleted, _ := s.swap.CompareAndDelete(ctx, key, raw); !deleted {
			return
		}
	} else {
		_ = s.p.Del(ctx, key)
	}
	s.selfHeal(key, reason)
}

func expiredReason(e wire.Entry, now time.Time) string {
	if !e.AbsoluteExpiresAt.IsZero() && !now.Before(e.AbsoluteExpiresAt) {
		return "expired_absolute"
	}
	if e.Sliding > 0 && !e.Touched.IsZero() && now.Sub(e.Touched) >= e.Sliding {
		return "expired_sliding"
	}
	return ""
}

// ttlFor is the provider TTL: the sliding window, cut short by the ceiling.
// Zero means no expiry.
func ttlFor(now, ceiling time.Time, sliding time.Duration) time.Duration {
	ttl := sliding
	if !ceiling.IsZero() {
		if rem := ceiling.Sub(now); ttl == 0 || rem < ttl {
			ttl = rem
		}
	}
	return ttl
}
