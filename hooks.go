package cacheaside

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the cache calls them on
// hot paths. See hooks/async to decouple slow sinks.
type Hooks interface {
	// A non-empty cached value was served.
	Hit(key string)

	// The cache could not serve key.
	// reason ∈ {"absent", "empty", "read_error", "decode_error"}
	Miss(key, reason string)

	// source ran for key (err is nil on success).
	SourceRun(key string, took time.Duration, err error)

	// A caller received a value produced by another caller's in-flight
	// population of the same key.
	Coalesced(key string)

	// Writing a freshly computed value back to the store failed.
	WriteFailed(key string, err error)

	// One BulkSet group settled. index is 0-based.
	GroupDone(runID string, index, size, failed int, took time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                                     {}
func (NopHooks) Miss(string, string)                            {}
func (NopHooks) SourceRun(string, time.Duration, error)         {}
func (NopHooks) Coalesced(string)                               {}
func (NopHooks) WriteFailed(string, error)                      {}
func (NopHooks) GroupDone(string, int, int, int, time.Duration) {}
