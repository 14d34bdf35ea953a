package cacheaside

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBatchSize = errors.New("cacheaside: batch size must be positive")
	ErrNegativeTTL      = errors.New("cacheaside: negative expiration")
)

// ConfigError is an invalid setting. It is returned before any work is done
// and is never worth retrying.
type ConfigError struct {
	Field  string
	Reason string
	Err    error // optional sentinel, e.g. ErrInvalidBatchSize
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cacheaside: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StoreError wraps a store or codec failure for one key.
// Op ∈ {"get", "set", "encode", "decode"}
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cacheaside: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SourceError is returned by GetOrPopulate when the source failed. Nothing
// was cached.
type SourceError struct {
	Key string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("cacheaside: source for %q failed: %v", e.Key, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
