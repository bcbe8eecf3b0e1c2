package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go.eggybyte.com/scf/configx"
	"go.eggybyte.com/scf/obsx"
	"go.eggybyte.com/scf/runtimex"
)

// watchOptions holds flags of the watch command.
type watchOptions struct {
	property    propertyOptions
	workers     int
	healthAddr  string
	metricsAddr string
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch KEY...",
		Short: "Print properties and every later change until interrupted",
		Long: `Resolve each KEY, print it, then keep the sources fresh and print one line
per change until SIGINT or SIGTERM.

Files and tables are polled every --poll-interval; ConfigMaps are watched.
Change notifications are delivered by a worker pool.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), global, opts, args)
		},
	}
	opts.property.bindFlags(cmd)
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "Notification worker goroutines")
	cmd.Flags().StringVar(&opts.healthAddr, "health-addr", "", "Serve /healthz on this address")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address")
	return cmd
}

// lineWriter serializes lines written from notification workers.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) printf(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

func runWatch(ctx context.Context, out, errOut io.Writer, global *globalOptions, opts *watchOptions, keys []string) error {
	logger := global.logger(errOut)

	st, err := buildStack(ctx, global.stack, logger)
	if err != nil {
		return err
	}
	if err := st.start(ctx); err != nil {
		return err
	}
	refresh := &refresher{stack: st}

	exec, err := runtimex.NewExecutor(runtimex.ExecutorOptions{Workers: opts.workers, Logger: logger})
	if err != nil {
		_ = st.stop(ctx)
		return err
	}

	runOpts := runtimex.Options{Logger: logger, HealthCheckers: st.checkers, ShutdownTimeout: 5 * time.Second}
	if opts.healthAddr != "" {
		runOpts.Health = &runtimex.Endpoint{Addr: opts.healthAddr}
	}

	cfg := configx.ManagerConfig{Name: "scf", Sources: st.sources, TaskExecutor: exec, Logger: logger}
	var provider *obsx.Provider
	if opts.metricsAddr != "" {
		provider, err = obsx.NewProvider(ctx, obsx.Options{ServiceName: "scf", ServiceVersion: Version})
		if err != nil {
			_ = st.stop(ctx)
			return err
		}
		defer provider.Shutdown(context.WithoutCancel(ctx))
		cfg.MeterProvider = provider.MeterProvider()
		runOpts.Metrics = &runtimex.Endpoint{Addr: opts.metricsAddr}
		runOpts.MetricsHandler = provider.PrometheusHandler()
	}

	m, err := configx.NewManager(cfg)
	if err != nil {
		_ = st.stop(ctx)
		return err
	}
	if provider != nil {
		if err := registerMetrics(provider, m, st); err != nil {
			_ = st.stop(ctx)
			return err
		}
	}

	w := &lineWriter{out: out}
	for _, key := range keys {
		p, err := bindProperty(m, key, opts.property)
		if err != nil {
			_ = st.stop(ctx)
			return err
		}
		v := viewOf(p)
		w.printf("%s=%s (source=%s)\n", v.Key, v.text(), v.Source)
	}

	if err := m.AddChangeListener(func(e configx.ChangeEvent) {
		old, v := changeViews(e)
		w.printf("%s changed: %s -> %s (source=%s)\n", v.Key, old.text(), v.text(), v.Source)
	}); err != nil {
		_ = st.stop(ctx)
		return err
	}

	return runtimex.Run(ctx, []runtimex.Service{exec, refresh}, runOpts)
}

func registerMetrics(provider *obsx.Provider, m *configx.Manager, st *stack) error {
	if err := provider.RegisterManagerMetrics(m); err != nil {
		return err
	}
	for _, table := range st.tables {
		if err := provider.RegisterStoreMetrics(table.Name(), table.DB()); err != nil {
			return err
		}
	}
	return nil
}
