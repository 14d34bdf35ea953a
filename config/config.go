// Package config loads cacheaside settings from TOML and opens the
// configured store.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/cacheaside"
)

// EnvBackend overrides Config.Backend when set.
const EnvBackend = "CACHEASIDE_BACKEND"

const (
	BackendMemory   = "memory" // ristretto
	BackendBigCache = "bigcache"
	BackendRedis    = "redis"
	BackendBolt     = "bolt"
)

// Duration is a time.Duration written as "2m", "20s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

type Config struct {
	Backend   string          `toml:"backend"`
	Read      ReadConfig      `toml:"read"`
	Bulk      BulkConfig      `toml:"bulk"`
	Redis     RedisConfig     `toml:"redis"`
	Bolt      BoltConfig      `toml:"bolt"`
	Ristretto RistrettoConfig `toml:"ristretto"`
	BigCache  BigCacheConfig  `toml:"bigcache"`
}

// ReadConfig drives GetOrPopulate.
type ReadConfig struct {
	Absolute            Duration `toml:"absolute"`
	Sliding             Duration `toml:"sliding"`
	DisableSingleFlight bool     `toml:"disable_single_flight"`
	Disabled            bool     `toml:"disabled"`
}

// BulkConfig drives BulkSet.
type BulkConfig struct {
	BatchSize       int      `toml:"batch_size"`
	Absolute        Duration `toml:"absolute"`
	Sliding         Duration `toml:"sliding"`
	ExactBatchCount bool     `toml:"exact_batch_count"`
	WritesPerSecond float64  `toml:"writes_per_second"` // 0 = unpaced
	WriteBurst      int      `toml:"write_burst"`
}

type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

type BoltConfig struct {
	Path   string `toml:"path"`
	Bucket string `toml:"bucket"`
}

type RistrettoConfig struct {
	NumCounters int64 `toml:"num_counters"`
	MaxCost     int64 `toml:"max_cost"`
	BufferItems int64 `toml:"buffer_items"`
	Metrics     bool  `toml:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow         Duration `toml:"life_window"`
	CleanWindow        Duration `toml:"clean_window"`
	HardMaxCacheSizeMB int      `toml:"hard_max_cache_size_mb"`
}

// Default returns the settings used for anything a file leaves out.
func Default() Config {
	return Config{
		Backend: BackendMemory,
		Read: ReadConfig{
			Absolute: Duration(cacheaside.DefaultPolicy.Absolute),
			Sliding:  Duration(cacheaside.DefaultPolicy.Sliding),
		},
		Bulk: BulkConfig{
			BatchSize: 10,
			Absolute:  Duration(2 * time.Minute),
			Sliding:   Duration(20 * time.Second),
		},
		Redis: RedisConfig{Addr: "localhost:6379", KeyPrefix: "redis_"},
		Bolt:  BoltConfig{Path: "cacheaside.db"},
		Ristretto: RistrettoConfig{
			NumCounters: 1e5,
			MaxCost:     64 << 20,
			BufferItems: 64,
		},
		BigCache: BigCacheConfig{LifeWindow: Duration(10 * time.Minute)},
	}
}

// Parse decodes TOML over Default. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path, applies the environment override and validates.
// An empty path yields Default with the override applied.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if b := strings.TrimSpace(getenv(EnvBackend)); b != "" {
		cfg.Backend = strings.ToLower(b)
	}
}

// Validate checks cross-field constraints. Errors are *cacheaside.ConfigError.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendBigCache, BackendRedis, BackendBolt:
	default:
		return &cacheaside.ConfigError{Field: "backend", Reason: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if err := c.Read.Policy().Validate(); err != nil {
		return err
	}
	if err := c.Bulk.Policy().Validate(); err != nil {
		return err
	}
	if c.Bulk.BatchSize <= 0 {
		return &cacheaside.ConfigError{
			Field:  "bulk.batch_size",
			Reason: fmt.Sprintf("must be positive, got %d", c.Bulk.BatchSize),
			Err:    cacheaside.ErrInvalidBatchSize,
		}
	}
	if c.Bulk.WritesPerSecond < 0 {
		return &cacheaside.ConfigError{Field: "bulk.writes_per_second", Reason: "must not be negative"}
	}
	switch c.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" {
			return &cacheaside.ConfigError{Field: "redis.addr", Reason: "required for the redis backend"}
		}
	case BackendBolt:
		if c.Bolt.Path == "" {
			return &cacheaside.ConfigError{Field: "bolt.path", Reason: "required for the bolt backend"}
		}
	case BackendBigCache:
		if c.BigCache.LifeWindow <= 0 {
			return &cacheaside.ConfigError{Field: "bigcache.life_window", Reason: "must be positive"}
		}
	}
	return nil
}

func (r ReadConfig) Policy() cacheaside.Policy {
	return cacheaside.Policy{Absolute: r.Absolute.D(), Sliding: r.Sliding.D()}
}

func (b BulkConfig) Policy() cacheaside.Policy {
	return cacheaside.Policy{Absolute: b.Absolute.D(), Sliding: b.Sliding.D()}
}

// Apply copies the cache-level settings of cfg into o. Store and Codec are
// left alone.
func Apply[V any](cfg Config, o *cacheaside.Options[V]) {
	o.DefaultPolicy = cfg.Read.Policy()
	o.DisableSingleFlight = cfg.Read.DisableSingleFlight
	o.Disabled = cfg.Read.Disabled
	o.ExactBatchCount = cfg.Bulk.ExactBatchCount
	if cfg.Bulk.WritesPerSecond > 0 {
		o.BulkWriteLimit = rate.Limit(cfg.Bulk.WritesPerSecond)
		o.BulkWriteBurst = cfg.Bulk.WriteBurst
	}
}
