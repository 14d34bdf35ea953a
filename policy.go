package cacheaside

import (
	"fmt"
	"time"

	"github.com/unkn0wn-root/cacheaside/store"
)

// Policy is the expiration applied to entries written by the cache.
//
// Absolute is a hard ceiling measured from the write. Sliding resets on
// every read and never extends an entry past the ceiling. Zero disables
// either bound. Sliding > Absolute is allowed; the ceiling wins.
type Policy struct {
	Absolute time.Duration
	Sliding  time.Duration
}

// DefaultPolicy is used when Options.DefaultPolicy is zero.
var DefaultPolicy = Policy{Absolute: 2 * time.Minute, Sliding: 5 * time.Second}

// NewPolicy returns a validated Policy. Negative durations are a *ConfigError.
func NewPolicy(absolute, sliding time.Duration) (Policy, error) {
	p := Policy{Absolute: absolute, Sliding: sliding}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// MustPolicy is like NewPolicy but panics on error.
func MustPolicy(absolute, sliding time.Duration) Policy {
	p, err := NewPolicy(absolute, sliding)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) Validate() error {
	if p.Absolute < 0 {
		return &ConfigError{Field: "policy.absolute", Reason: fmt.Sprintf("negative duration %s", p.Absolute), Err: ErrNegativeTTL}
	}
	if p.Sliding < 0 {
		return &ConfigError{Field: "policy.sliding", Reason: fmt.Sprintf("negative duration %s", p.Sliding), Err: ErrNegativeTTL}
	}
	return nil
}

func (p Policy) IsZero() bool { return p == Policy{} }

// StoreOptions derives the store options for an entry written at now.
func (p Policy) StoreOptions(now time.Time) store.Options {
	o := store.Options{SlidingWindow: p.Sliding}
	if p.Absolute > 0 {
		o.AbsoluteExpiresAt = now.Add(p.Absolute)
	}
	return o
}
