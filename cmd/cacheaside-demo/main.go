// Command cacheaside-demo caches a student list and bulk-writes a key range
// against the configured backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/cacheaside"
	"github.com/unkn0wn-root/cacheaside/codec"
	"github.com/unkn0wn-root/cacheaside/config"
	asynchook "github.com/unkn0wn-root/cacheaside/hooks/async"
	promhooks "github.com/unkn0wn-root/cacheaside/hooks/prom"
	"github.com/unkn0wn-root/cacheaside/internal/roster"
	zaplog "github.com/unkn0wn-root/cacheaside/log/zap"
	"github.com/unkn0wn-root/cacheaside/sloghooks"
	"github.com/unkn0wn-root/cacheaside/store"
)

const studentsKey = "GetAllStudents"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cacheaside-demo:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("cacheaside-demo", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
	codecName := fs.String("codec", "json", "student codec: json, msgpack or cbor")
	delay := fs.Duration("delay", 2*time.Second, "simulated directory latency")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	zl, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := zaplog.ZapLogger{L: zl}

	reg := prometheus.NewRegistry()
	ph, err := promhooks.New(reg)
	if err != nil {
		return err
	}
	hooks := asynchook.New(ph, 1, 1024)
	defer hooks.Close()

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	healLog := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
	st, err := config.Open(ctx, cfg, config.OpenOptions{OnSelfHeal: healLog.SelfHeal})
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	inner, err := pickCodec(*codecName)
	if err != nil {
		return err
	}
	studentCodec := codec.Limit[[]roster.Student]{Inner: inner, MaxDecode: 1 << 20}

	if err := showStudents(ctx, cfg, st, studentCodec, logger, hooks, *delay); err != nil {
		return err
	}
	return bulkKeys(ctx, cfg, st, logger, hooks)
}

func pickCodec(name string) (codec.Codec[[]roster.Student], error) {
	switch name {
	case "json":
		return codec.JSON[[]roster.Student]{}, nil
	case "msgpack":
		return codec.Msgpack[[]roster.Student]{}, nil
	case "cbor":
		cb, err := codec.NewCBOR[[]roster.Student](true)
		if err != nil {
			return nil, err
		}
		return cb, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

func showStudents(ctx context.Context, cfg config.Config, st store.Store, cd codec.Codec[[]roster.Student], logger cacheaside.Logger, hooks cacheaside.Hooks, delay time.Duration) error {
	opts := cacheaside.Options[[]roster.Student]{
		Store:  st,
		Codec:  cd,
		Logger: logger,
		Hooks:  hooks,
	}
	config.Apply(cfg, &opts)
	cache, err := cacheaside.New(opts)
	if err != nil {
		return err
	}

	dir := roster.NewDirectory(roster.Seed())
	for i := 1; i <= 2; i++ {
		start := time.Now()
		students, err := cache.GetOrPopulate(ctx, studentsKey, dir.Source(delay), cfg.Read.Policy())
		if err != nil {
			return err
		}
		fmt.Printf("call %d: %d students in %s\n", i, len(students), time.Since(start).Round(time.Millisecond))
		for _, s := range students {
			fmt.Printf("  %d %s class=%s roll=%d\n", s.ID, s.Name, s.Class, s.RollNumber)
		}
	}
	return nil
}

func bulkKeys(ctx context.Context, cfg config.Config, st store.Store, logger cacheaside.Logger, hooks cacheaside.Hooks) error {
	opts := cacheaside.Options[string]{
		Store:  st,
		Codec:  codec.String{},
		Logger: logger,
		Hooks:  hooks,
	}
	config.Apply(cfg, &opts)
	cache, err := cacheaside.New(opts)
	if err != nil {
		return err
	}

	entries := make([]cacheaside.Entry[string], 15)
	for i := range entries {
		entries[i] = cacheaside.Entry[string]{
			Key:   fmt.Sprintf("Key_%d", i+1),
			Value: fmt.Sprintf("KeyValue_%d", i+1),
		}
	}
	res, err := cache.BulkSet(ctx, entries, cfg.Bulk.BatchSize, cfg.Bulk.Policy())
	if err != nil {
		return err
	}
	fmt.Printf("bulk set run=%s groups=%d status=%d\n", res.RunID, res.Groups, res.Status())
	for _, f := range res.Failed {
		fmt.Printf("  failed %s\n", f)
	}
	return nil
}
