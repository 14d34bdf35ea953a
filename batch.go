package cacheaside

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// KeyError is a failed BulkSet key.
type KeyError struct {
	Key string
	Err error
}

func (e KeyError) Error() string { return fmt.Sprintf("%s: %v", e.Key, e.Err) }

// BulkResult summarizes one BulkSet call. A key whose ceiling had already
// passed when it reached the store is not written and lands in Failed with
// store.ErrExpired in its chain.
type BulkResult struct {
	RunID     string
	Groups    int // planned groups, including a trailing empty one
	Succeeded int
	Failed    []KeyError
}

// Status collapses the result for callers that only want 1 (all keys
// written) or -1 (anything failed).
func (r BulkResult) Status() int {
	if len(r.Failed) > 0 {
		return -1
	}
	return 1
}

// span is a half-open range [start, end) of the input entries.
type span struct{ start, end int }

// planBatches partitions n entries into groups of size. By default the
// group count is n/size+1, so an exact multiple of size gets a trailing
// empty group; exact selects ceil(n/size).
func planBatches(n, size int, exact bool) []span {
	count := n/size + 1
	if exact {
		count = (n + size - 1) / size
	}
	out := make([]span, 0, count)
	for i := 0; i < count; i++ {
		start := min(i*size, n)
		out = append(out, span{start: start, end: min(start+size, n)})
	}
	return out
}

func (c *cache[V]) BulkSet(ctx context.Context, entries []Entry[V], batchSize int, policy Policy) (BulkResult, error) {
	if batchSize <= 0 {
		return BulkResult{}, &ConfigError{
			Field:  "batch size",
			Reason: fmt.Sprintf("must be positive, got %d", batchSize),
			Err:    ErrInvalidBatchSize,
		}
	}
	p := c.resolve(policy)
	if err := p.Validate(); err != nil {
		return BulkResult{}, err
	}

	res := BulkResult{RunID: uuid.NewString()}
	if !c.enabled {
		return res, nil
	}

	plan := planBatches(len(entries), batchSize, c.exactBatches)
	res.Groups = len(plan)
	for i, s := range plan {
		if err := ctx.Err(); err != nil {
			for _, e := range entries[s.start:] {
				c.bulkFailed(&res, e.Key, err)
			}
			c.log.Warn("bulk set cancelled", Fields{"run": res.RunID, "group": i, "remaining": len(entries) - s.start})
			return res, err
		}
		c.writeGroup(ctx, &res, i, entries[s.start:s.end], p)
	}

	c.log.Debug("bulk set done", Fields{
		"run":       res.RunID,
		"groups":    res.Groups,
		"succeeded": res.Succeeded,
		"failed":    len(res.Failed),
	})
	return res, nil
}

// writeGroup encodes the whole group, then writes it concurrently and
// returns only when every write has settled.
func (c *cache[V]) writeGroup(ctx context.Context, res *BulkResult, index int, group []Entry[V], p Policy) {
	start := c.now()
	errs := make([]error, len(group))
	payloads := make([][]byte, len(group))
	for i, e := range group {
		b, err := c.codec.Encode(e.Value)
		if err != nil {
			errs[i] = &StoreError{Op: "encode", Key: e.Key, Err: err}
			continue
		}
		payloads[i] = b
	}

	opts := p.StoreOptions(c.now())
	var g errgroup.Group
	for i, e := range group {
		if errs[i] != nil {
			continue
		}
		g.Go(func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					errs[i] = err
					return nil
				}
			}
			if err := c.store.Set(ctx, e.Key, payloads[i], opts); err != nil {
				errs[i] = &StoreError{Op: "set", Key: e.Key, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, e := range group {
		if errs[i] != nil {
			failed++
			c.bulkFailed(res, e.Key, errs[i])
			continue
		}
		res.Succeeded++
	}
	c.hooks.GroupDone(res.RunID, index, len(group), failed, c.now().Sub(start))
}

func (c *cache[V]) bulkFailed(res *BulkResult, key string, err error) {
	res.Failed = append(res.Failed, KeyError{Key: key, Err: err})
	c.report("BulkSet", key, fmt.Sprintf("bulk write failed (run %s)", res.RunID), err)
}
