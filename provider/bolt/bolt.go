// Package bolt adapts a bbolt database file as a persistent local provider.
// Entries survive restarts; expired entries are dropped lazily on Get and by
// Sweep.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	pr "github.com/unkn0wn-root/cacheaside/provider"
)

type Provider struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Swapper  = (*Provider)(nil)
)

type Config struct {
	Path string
	// Bucket is the name of the Bolt bucket to use; "cacheaside" if empty.
	Bucket string
	// OpenTimeout bounds waiting for the file lock; 1s if zero.
	OpenTimeout time.Duration
	// Now overrides the clock used for TTL checks (tests).
	Now func() time.Time
}

func Open(cfg Config) (*Provider, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt provider: empty path")
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bucket := []byte("cacheaside")
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{db: db, bucket: bucket, now: now}, nil
}

// Layout: 8 bytes big endian expiresAt (unix nanos, 0 = never) || raw value
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	buf := p.frame(value, ttl)
	err := p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(p.bucket).Put([]byte(key), buf)
	})
	return err == nil, err
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		out     []byte
		expired bool
	)
	err := p.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(p.bucket).Get([]byte(key))
		if len(v) < 8 {
			return nil
		}
		if p.expired(v) {
			expired = true
			return nil
		}
		out = append([]byte{}, v[8:]...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if expired {
		_ = p.deleteIfExpired(key)
		return nil, false, nil
	}
	return out, out != nil, nil
}

// deleteIfExpired re-checks inside the write transaction so a Set landing
// after the read is kept.
func (p *Provider) deleteIfExpired(key string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket)
		v := b.Get([]byte(key))
		if len(v) < 8 || !p.expired(v) {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (p *Provider) CompareAndSwap(_ context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	swapped := false
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket)
		if !p.holds(b.Get([]byte(key)), old) {
			return nil
		}
		swapped = true
		return b.Put([]byte(key), p.frame(value, ttl))
	})
	return swapped && err == nil, err
}

func (p *Provider) CompareAndDelete(_ context.Context, key string, old []byte) (bool, error) {
	deleted := false
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket)
		if !p.holds(b.Get([]byte(key)), old) {
			return nil
		}
		deleted = true
		return b.Delete([]byte(key))
	})
	return deleted && err == nil, err
}

// holds reports whether stored v is live and carries want.
func (p *Provider) holds(v, want []byte) bool {
	return len(v) >= 8 && !p.expired(v) && bytes.Equal(v[8:], want)
}

func (p *Provider) Del(_ context.Context, key string) error {
	return p.delete(key)
}

// Sweep deletes every expired entry and returns how many were removed.
func (p *Provider) Sweep(_ context.Context) (int, error) {
	removed := 0
	err := p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(p.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if len(v) < 8 || p.expired(v) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (p *Provider) Close(_ context.Context) error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Provider) frame(value []byte, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = p.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)
	return buf
}

func (p *Provider) expired(v []byte) bool {
	exp := int64(binary.BigEndian.Uint64(v[:8]))
	return exp > 0 && p.now().UnixNano() >= exp
}

func (p *Provider) delete(key string) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(p.bucket).Delete([]byte(key))
	})
}
