// Package sloghooks logs cache events through log/slog.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/cacheaside"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	MissEvery     uint64
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ cacheaside.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("cacheaside.hit", "key", h.redact(key))
}

func (h *Hooks) Miss(key, reason string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("cacheaside.miss",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) SourceRun(key string, took time.Duration, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("cacheaside.source_failed",
			"key", h.redact(key),
			"took", took,
			"err", err)
		return
	}
	h.l.Debug("cacheaside.source_run",
		"key", h.redact(key),
		"took", took)
}

func (h *Hooks) Coalesced(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("cacheaside.coalesced", "key", h.redact(key))
}

func (h *Hooks) WriteFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cacheaside.write_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) GroupDone(runID string, index, size, failed int, took time.Duration) {
	if h.l == nil {
		return
	}
	lvl := slog.LevelDebug
	if failed > 0 {
		lvl = slog.LevelWarn
	}
	h.l.Log(context.Background(), lvl, "cacheaside.bulk_group",
		"run", runID,
		"group", index,
		"size", size,
		"failed", failed,
		"took", took)
}

// SelfHeal matches store.Config.OnSelfHeal.
func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("cacheaside.self_heal",
		"key", h.redact(key),
		"reason", reason)
}
