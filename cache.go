package cacheaside

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	c "github.com/unkn0wn-root/cacheaside/codec"
	"github.com/unkn0wn-root/cacheaside/store"
)

type cache[V any] struct {
	store    store.Store
	codec    c.Codec[V]
	log      Logger
	reporter Reporter
	hooks    Hooks
	enabled  bool

	defaultPolicy Policy
	isEmpty       func(V) bool
	now           store.Clock

	singleFlight bool
	flights      singleflight.Group

	exactBatches bool
	limiter      *rate.Limiter
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, &ConfigError{Field: "store", Reason: "store is required"}
	}
	if opts.Codec == nil {
		return nil, &ConfigError{Field: "codec", Reason: "codec is required"}
	}
	if err := opts.DefaultPolicy.Validate(); err != nil {
		return nil, err
	}
	if opts.BulkWriteLimit < 0 {
		return nil, &ConfigError{Field: "bulk write limit", Reason: fmt.Sprintf("negative rate %v", opts.BulkWriteLimit)}
	}

	c := &cache[V]{
		store:        opts.Store,
		codec:        opts.Codec,
		enabled:      !opts.Disabled,
		singleFlight: !opts.DisableSingleFlight,
		exactBatches: opts.ExactBatchCount,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.reporter = coalesce[Reporter](opts.Reporter, LogReporter{Logger: c.log})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultPolicy = coalesce(opts.DefaultPolicy, DefaultPolicy)

	if opts.IsEmpty != nil {
		c.isEmpty = opts.IsEmpty
	} else {
		c.isEmpty = isEmptyDefault[V]
	}
	if opts.Clock != nil {
		c.now = opts.Clock
	} else {
		c.now = time.Now
	}
	if opts.BulkWriteLimit > 0 {
		c.limiter = rate.NewLimiter(opts.BulkWriteLimit, max(opts.BulkWriteBurst, 1))
	}
	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}

func (c *cache[V]) GetOrPopulate(ctx context.Context, key string, source Source[V], policy Policy) (V, error) {
	var zero V
	if source == nil {
		return zero, &ConfigError{Field: "source", Reason: "source is required"}
	}
	if !c.enabled {
		return c.runSource(ctx, key, source)
	}

	if v, ok := c.read(ctx, key); ok {
		return v, nil
	}

	if !c.singleFlight {
		return c.populate(ctx, key, source, policy)
	}

	v, led, err := c.shared(ctx, key, source, policy)
	if err != nil && !led && ctx.Err() == nil && leaderGaveUp(err) {
		// the leader's ctx ended, ours did not: try once more
		if v, ok := c.read(ctx, key); ok {
			return v, nil
		}
		v, _, err = c.shared(ctx, key, source, policy)
	}
	return v, err
}

// shared joins or starts the in-flight populate for key. led reports whether
// this caller ran the source. The leader's ctx drives the source; a follower
// gives up on its own ctx.
func (c *cache[V]) shared(ctx context.Context, key string, source Source[V], policy Policy) (V, bool, error) {
	var zero V
	led := false
	ch := c.flights.DoChan(key, func() (any, error) {
		led = true
		return c.populate(ctx, key, source, policy)
	})
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Shared && !led {
			c.hooks.Coalesced(key)
		}
		if res.Err != nil {
			return zero, led, res.Err
		}
		v, _ := res.Val.(V)
		return v, led, nil
	}
}

func leaderGaveUp(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// read serves key from the store. Any failure is reported and becomes a miss.
func (c *cache[V]) read(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.report("GetOrPopulate.read", key, "cache read failed; treating as miss", &StoreError{Op: "get", Key: key, Err: err})
		c.hooks.Miss(key, "read_error")
		return zero, false
	}
	if !ok {
		c.hooks.Miss(key, "absent")
		return zero, false
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		c.report("GetOrPopulate.read", key, "cached payload did not decode; treating as miss", &StoreError{Op: "decode", Key: key, Err: err})
		c.hooks.Miss(key, "decode_error")
		return zero, false
	}
	if c.isEmpty(v) {
		c.log.Debug("cached value empty; repopulating", Fields{"key": key})
		c.hooks.Miss(key, "empty")
		return zero, false
	}
	c.hooks.Hit(key)
	return v, true
}

func (c *cache[V]) populate(ctx context.Context, key string, source Source[V], policy Policy) (V, error) {
	v, err := c.runSource(ctx, key, source)
	if err != nil {
		return v, err
	}
	c.write(ctx, key, v, policy)
	return v, nil
}

func (c *cache[V]) runSource(ctx context.Context, key string, source Source[V]) (V, error) {
	start := c.now()
	v, err := source(ctx)
	c.hooks.SourceRun(key, c.now().Sub(start), err)
	if err != nil {
		var zero V
		serr := &SourceError{Key: key, Err: err}
		c.report("GetOrPopulate.source", key, "source failed", serr)
		return zero, serr
	}
	return v, nil
}

// write stores v under key. Failures are reported and swallowed: the caller
// already has its value.
func (c *cache[V]) write(ctx context.Context, key string, v V, policy Policy) {
	p := c.resolve(policy)
	if err := p.Validate(); err != nil {
		c.writeFailed(key, "invalid policy; value not cached", err)
		return
	}
	payload, err := c.codec.Encode(v)
	if err != nil {
		c.writeFailed(key, "encode failed; value not cached", &StoreError{Op: "encode", Key: key, Err: err})
		return
	}
	if err := c.store.Set(ctx, key, payload, p.StoreOptions(c.now())); err != nil {
		if errors.Is(err, store.ErrExpired) {
			c.log.Debug("entry expired before write; not cached", Fields{"key": key})
			return
		}
		c.writeFailed(key, "cache write failed; value not cached", &StoreError{Op: "set", Key: key, Err: err})
		return
	}
	c.log.Debug("populated", Fields{"key": key, "absolute": p.Absolute, "sliding": p.Sliding})
}

func (c *cache[V]) writeFailed(key, msg string, err error) {
	c.report("GetOrPopulate.write", key, msg, err)
	c.hooks.WriteFailed(key, err)
}

func (c *cache[V]) resolve(p Policy) Policy {
	if p.IsZero() {
		return c.defaultPolicy
	}
	return p
}

func (c *cache[V]) report(op, key, msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("reporter panicked", Fields{"op": op, "key": key, "panic": r})
		}
	}()
	c.reporter.Report(Failure{
		Operation: op,
		Key:       key,
		Message:   msg,
		Err:       err,
		Stack:     debug.Stack(),
	})
}
