// Package asynchook moves hook delivery off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitEvery: 100, // sample logs: ~every 100th hit
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := cacheaside.New[[]Student](cacheaside.Options[[]Student]{
//	    Store: st,
//	    Codec: codec.JSON[[]Student]{},
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/cacheaside"
)

type Hooks struct {
	inner   cacheaside.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ cacheaside.Hooks = (*Hooks)(nil)

func New(inner cacheaside.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(k string)       { h.try(func() { h.inner.Hit(k) }) }
func (h *Hooks) Miss(k, r string)   { h.try(func() { h.inner.Miss(k, r) }) }
func (h *Hooks) Coalesced(k string) { h.try(func() { h.inner.Coalesced(k) }) }
func (h *Hooks) WriteFailed(k string, err error) {
	h.try(func() { h.inner.WriteFailed(k, err) })
}
func (h *Hooks) SourceRun(k string, took time.Duration, err error) {
	h.try(func() { h.inner.SourceRun(k, took, err) })
}
func (h *Hooks) GroupDone(run string, i, size, failed int, took time.Duration) {
	h.try(func() { h.inner.GroupDone(run, i, size, failed, took) })
}
