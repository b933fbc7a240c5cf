// Command memobench runs a synthetic Zipf workload through a memoized
// function and exposes Prometheus metrics and optional pprof endpoints.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/memocache/key"
	"github.com/IvanBrykalov/memocache/memo"
	pmet "github.com/IvanBrykalov/memocache/metrics/prom"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	w := defaultWorkload()
	var (
		configPath  string
		pprofAddr   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:           "memobench",
		Short:         "Benchmark the memo cache under a skewed key distribution",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				loaded, err := loadWorkload(configPath, defaultWorkload())
				if err != nil {
					return err
				}
				w = overlayFlags(cmd, loaded, w)
			}
			if err := w.validate(); err != nil {
				return err
			}
			log := newLogger(cmd)
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			serve(log, reg, pprofAddr, metricsAddr)
			return run(cmd.Context(), log, reg, w, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML workload file (flags override its values)")
	f.StringVar(&w.MaxSize, "maxsize", w.MaxSize, `cache bound: an integer, 0 to disable caching, or "none"`)
	f.BoolVar(&w.Typed, "typed", w.Typed, "distinguish argument types in keys")
	f.IntVar(&w.Workers, "workers", w.Workers, "number of worker goroutines")
	f.DurationVar(&w.Duration, "duration", w.Duration, "benchmark duration")
	f.Uint64Var(&w.Keys, "keys", w.Keys, "keyspace size")
	f.Float64Var(&w.ZipfS, "zipf-s", w.ZipfS, "Zipf s > 1 (skew)")
	f.Float64Var(&w.ZipfV, "zipf-v", w.ZipfV, "Zipf v >= 1")
	f.Int64Var(&w.Seed, "seed", w.Seed, "random seed")
	f.DurationVar(&w.Work, "work", w.Work, "simulated cost of one miss")
	f.StringVar(&pprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.StringVar(&metricsAddr, "http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	f.String("log-level", "", "debug | info | warn | error (env MEMOBENCH_LOG_LEVEL)")
	return cmd
}

// overlayFlags keeps the file's values except where a flag was set
// explicitly on the command line.
func overlayFlags(cmd *cobra.Command, file, flags workload) workload {
	set := cmd.Flags().Changed
	if set("maxsize") {
		file.MaxSize = flags.MaxSize
	}
	if set("typed") {
		file.Typed = flags.Typed
	}
	if set("workers") {
		file.Workers = flags.Workers
	}
	if set("duration") {
		file.Duration = flags.Duration
	}
	if set("keys") {
		file.Keys = flags.Keys
	}
	if set("zipf-s") {
		file.ZipfS = flags.ZipfS
	}
	if set("zipf-v") {
		file.ZipfV = flags.ZipfV
	}
	if set("seed") {
		file.Seed = flags.Seed
	}
	if set("work") {
		file.Work = flags.Work
	}
	return file
}

// flagOrEnv returns the flag value if set, else the environment variable,
// else def.
func flagOrEnv(cmd *cobra.Command, flagName, envName, def string) string {
	if v, _ := cmd.Flags().GetString(flagName); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(envName); ok {
		return v
	}
	return def
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(flagOrEnv(cmd, "log-level", "MEMOBENCH_LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// serve starts the pprof listener (DefaultServeMux) and the metrics
// listener (its own mux, exposing reg only).
func serve(log *slog.Logger, reg *prometheus.Registry, pprofAddr, metricsAddr string) {
	if pprofAddr != "" {
		go func() {
			log.Info("pprof: serving", slog.String("addr", pprofAddr))
			log.Error("pprof: stopped", slog.Any("err", http.ListenAndServe(pprofAddr, nil)))
		}()
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		go func() {
			log.Info("metrics: serving", slog.String("addr", metricsAddr))
			log.Error("metrics: stopped", slog.Any("err", http.ListenAndServe(metricsAddr, mux)))
		}()
	}
}

func run(ctx context.Context, log *slog.Logger, reg prometheus.Registerer, w workload, out io.Writer) error {
	opt, err := w.options()
	if err != nil {
		return err
	}
	opt.Metrics = pmet.New(reg, "memo", "bench", nil)
	opt.Logger = log

	var computed atomic.Uint64
	h, err := memo.New[string](func(_ context.Context, a key.Args) (string, error) {
		computed.Add(1)
		spin(w.Work)
		return "v:" + a.Positional[0].(string), nil
	}, opt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.Duration)
	defer cancel()

	var total atomic.Uint64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < w.Workers; id++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(w.Seed + int64(id)*9973))
			z := rand.NewZipf(r, w.ZipfS, w.ZipfV, w.Keys-1)
			for ctx.Err() == nil {
				k := "k:" + strconv.FormatUint(z.Uint64(), 10)
				if _, err := h.CallArgs(ctx, k); err != nil {
					return err
				}
				total.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	info := h.Info()
	ops := total.Load()
	hitRate := 0.0
	if n := info.Hits + info.Misses; n > 0 {
		hitRate = float64(info.Hits) / float64(n) * 100
	}
	fmt.Fprintf(out, "maxsize=%s typed=%v workers=%d keys=%d dur=%v seed=%d\n",
		w.MaxSize, w.Typed, w.Workers, w.Keys, elapsed, w.Seed)
	fmt.Fprintf(out, "calls=%d (%.0f calls/s)  computed=%d  hit-rate=%.2f%%\n",
		ops, float64(ops)/elapsed.Seconds(), computed.Load(), hitRate)
	fmt.Fprintln(out, info)
	return nil
}

// spin burns roughly d of CPU without sleeping, so misses cost real work.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	for end := time.Now().Add(d); time.Now().Before(end); {
	}
}
