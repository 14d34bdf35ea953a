// Package promhooks exports cache events as Prometheus metrics.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/cacheaside"
)

const namespace = "cacheaside"

type Hooks struct {
	hits        prometheus.Counter
	misses      *prometheus.CounterVec
	sourceRuns  *prometheus.CounterVec
	sourceTime  prometheus.Histogram
	coalesced   prometheus.Counter
	writeFailed prometheus.Counter
	bulkKeys    *prometheus.CounterVec
	groupTime   prometheus.Histogram
}

var _ cacheaside.Hooks = (*Hooks)(nil)

// New registers the collectors on reg. Keys are never used as label
// values.
func New(reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "hits_total",
			Help: "Values served from the store.",
		}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "misses_total",
			Help: "Reads the store could not serve, by reason.",
		}, []string{"reason"}),
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "source_runs_total",
			Help: "Source invocations, by outcome.",
		}, []string{"outcome"}),
		sourceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "source_duration_seconds",
			Help:    "Source latency.",
			Buckets: prometheus.DefBuckets,
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "coalesced_total",
			Help: "Callers served by another caller's population.",
		}),
		writeFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "write_failures_total",
			Help: "Populate write-backs that failed.",
		}),
		bulkKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "bulk_keys_total",
			Help: "BulkSet keys, by outcome.",
		}, []string{"outcome"}),
		groupTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "bulk_group_duration_seconds",
			Help:    "Time for one BulkSet group to settle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{
		h.hits, h.misses, h.sourceRuns, h.sourceTime,
		h.coalesced, h.writeFailed, h.bulkKeys, h.groupTime,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNew is New that panics on registration errors.
func MustNew(reg prometheus.Registerer) *Hooks {
	h, err := New(reg)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Hooks) Hit(string)              { h.hits.Inc() }
func (h *Hooks) Miss(_ string, r string) { h.misses.WithLabelValues(r).Inc() }
func (h *Hooks) Coalesced(string)        { h.coalesced.Inc() }
func (h *Hooks) WriteFailed(string, error) {
	h.writeFailed.Inc()
}

func (h *Hooks) SourceRun(_ string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.sourceRuns.WithLabelValues(outcome).Inc()
	h.sourceTime.Observe(took.Seconds())
}

func (h *Hooks) GroupDone(_ string, _ int, size, failed int, took time.Duration) {
	h.bulkKeys.WithLabelValues("ok").Add(float64(size - failed))
	h.bulkKeys.WithLabelValues("failed").Add(float64(failed))
	h.groupTime.Observe(took.Seconds())
}
