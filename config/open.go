package config

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/cacheaside/provider"
	"github.com/unkn0wn-root/cacheaside/provider/bigcache"
	"github.com/unkn0wn-root/cacheaside/provider/bolt"
	"github.com/unkn0wn-root/cacheaside/provider/redis"
	"github.com/unkn0wn-root/cacheaside/provider/ristretto"
	"github.com/unkn0wn-root/cacheaside/store"
)

// OpenOptions are passed through to store.Config.
type OpenOptions struct {
	Clock      store.Clock
	OnSelfHeal func(key, reason string)
}

// Open builds the configured provider and wraps it in a store.Expiring.
// Closing the returned store closes the provider.
func Open(ctx context.Context, cfg Config, opts OpenOptions) (*store.Expiring, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, cost, err := openProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	st, err := store.NewExpiring(store.Config{
		Provider:   p,
		Clock:      opts.Clock,
		Cost:       cost,
		OnSelfHeal: opts.OnSelfHeal,
	})
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	return st, nil
}

func openProvider(ctx context.Context, cfg Config) (pr.Provider, store.CostFunc, error) {
	switch cfg.Backend {
	case BackendMemory:
		p, err := ristretto.New(ristretto.Config{
			NumCounters: cfg.Ristretto.NumCounters,
			MaxCost:     cfg.Ristretto.MaxCost,
			BufferItems: cfg.Ristretto.BufferItems,
			Metrics:     cfg.Ristretto.Metrics,
			SyncWrites:  true,
		})
		if err != nil {
			return nil, nil, err
		}
		// MaxCost is in bytes.
		return p, func(_ string, raw []byte) int64 { return int64(len(raw)) }, nil

	case BackendBigCache:
		p, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:         cfg.BigCache.LifeWindow.D(),
			CleanWindow:        cfg.BigCache.CleanWindow.D(),
			HardMaxCacheSizeMB: cfg.BigCache.HardMaxCacheSizeMB,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil

	case BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		p, err := redis.New(redis.Config{Client: rdb, KeyPrefix: cfg.Redis.KeyPrefix, CloseClient: true})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		if err := p.Ping(ctx); err != nil {
			_ = p.Close(ctx)
			return nil, nil, err
		}
		return p, nil, nil

	case BackendBolt:
		p, err := bolt.Open(bolt.Config{Path: cfg.Bolt.Path, Bucket: cfg.Bolt.Bucket})
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
