package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/pflag"

	"go.eggybyte.com/scf/configx"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/k8sx"
	"go.eggybyte.com/scf/runtimex"
	"go.eggybyte.com/scf/sourcex"
	"go.eggybyte.com/scf/storex"
)

// stackOptions selects the sources consulted by a command.
type stackOptions struct {
	set              map[string]string
	env              bool
	envPrefix        string
	properties       []string
	yaml             []string
	dsn              string
	table            string
	configMap        string
	namespace        string
	breaker          bool
	cascadeSeparator string
	cascadeFactors   []string
	pollInterval     time.Duration
}

func (o *stackOptions) bindFlags(flags *pflag.FlagSet) {
	flags.StringToStringVar(&o.set, "set", nil, "Highest priority values (key=value)")
	flags.BoolVar(&o.env, "env", false, "Read environment variables")
	flags.StringVar(&o.envPrefix, "env-prefix", "", "Prefix prepended to keys looked up in the environment (implies --env)")
	flags.StringSliceVar(&o.properties, "properties", nil, ".properties files, highest priority first")
	flags.StringSliceVar(&o.yaml, "yaml", nil, "YAML files, highest priority first")
	flags.StringVar(&o.dsn, "db", "", "SQLite DSN of a property table")
	flags.StringVar(&o.table, "db-table", storex.DefaultTable, "Property table name")
	flags.StringVar(&o.configMap, "configmap", "", "Kubernetes ConfigMap name (in-cluster)")
	flags.StringVar(&o.namespace, "namespace", "default", "Kubernetes namespace of the ConfigMap")
	flags.BoolVar(&o.breaker, "breaker", false, "Guard remote sources with a circuit breaker")
	flags.StringVar(&o.cascadeSeparator, "cascade-separator", ".", "Separator between a key and its cascade factors")
	flags.StringSliceVar(&o.cascadeFactors, "cascade-factor", nil, "Cascade factors, least specific first")
	flags.DurationVar(&o.pollInterval, "poll-interval", 2*time.Second, "Refresh interval for files and tables while watching")
}

// stack is the set of sources built from stackOptions, plus what keeps them
// fresh.
type stack struct {
	sources  []configx.PrioritizedSource
	checkers []runtimex.HealthChecker
	tables   []*storex.TableSource
	remote   []runtimex.Service
	pollers  []func(ctx context.Context)
}

// buildStack creates every requested source. Remote sources are not started.
// Priorities descend in flag order: set, env, properties, yaml, db, configmap.
func buildStack(ctx context.Context, opts stackOptions, logger log.Logger) (*stack, error) {
	st := &stack{}
	priority := 1000
	add := func(src sourcex.Source) error {
		if len(opts.cascadeFactors) > 0 {
			cfg, err := sourcex.NewCascadedConfig(sourcex.CascadedOptions{
				Name:            src.Config().Name + "+cascaded",
				KeySeparator:    opts.cascadeSeparator,
				CascadedFactors: opts.cascadeFactors,
				Source:          src,
			})
			if err != nil {
				return err
			}
			if src, err = sourcex.NewKeyCachedCascadedSource(cfg, logger); err != nil {
				return err
			}
		}
		st.sources = append(st.sources, configx.PrioritizedSource{Priority: priority, Source: src})
		priority -= 10
		return nil
	}
	guard := func(src sourcex.Source) (sourcex.Source, error) {
		if !opts.breaker {
			return src, nil
		}
		b, err := sourcex.NewBreakerSource(src, sourcex.BreakerOptions{Logger: logger})
		if err != nil {
			return nil, err
		}
		name := src.Config().Name
		st.checkers = append(st.checkers, runtimex.HealthCheckerFunc(name+"-breaker", func(context.Context) error {
			if b.State() == gobreaker.StateOpen {
				return fmt.Errorf("circuit open")
			}
			return nil
		}))
		return b, nil
	}

	if len(opts.set) > 0 {
		mem := sourcex.NewMemorySource(sourcex.MustConfig("flags"), logger)
		mem.SetAll(opts.set)
		if err := add(mem); err != nil {
			return nil, err
		}
	}

	if opts.env || opts.envPrefix != "" {
		if err := add(sourcex.NewEnvSource(sourcex.MustConfig("env"), opts.envPrefix, logger)); err != nil {
			return nil, err
		}
	}

	for _, group := range []struct {
		paths []string
		open  func(string, sourcex.FileOptions) (*sourcex.FileSource, error)
	}{
		{opts.properties, sourcex.NewPropertiesFileSource},
		{opts.yaml, sourcex.NewYAMLFileSource},
	} {
		for _, path := range group.paths {
			file, err := group.open(path, sourcex.FileOptions{Logger: logger})
			if err != nil {
				return nil, err
			}
			st.pollers = append(st.pollers, func(ctx context.Context) { file.Watch(ctx, opts.pollInterval) })
			if err := add(file); err != nil {
				return nil, err
			}
		}
	}

	if opts.dsn != "" {
		db, err := storex.OpenSQLite(opts.dsn, logger)
		if err != nil {
			return nil, err
		}
		table, err := storex.NewTableSource(db, storex.Options{Name: "db:" + opts.table, Table: opts.table, Logger: logger})
		if err != nil {
			return nil, err
		}
		if err := table.Refresh(ctx); err != nil {
			return nil, err
		}
		st.tables = append(st.tables, table)
		st.checkers = append(st.checkers, table)
		st.pollers = append(st.pollers, func(ctx context.Context) { table.Watch(ctx, opts.pollInterval) })
		src, err := guard(table)
		if err != nil {
			return nil, err
		}
		if err := add(src); err != nil {
			return nil, err
		}
	}

	if opts.configMap != "" {
		client, err := k8sx.NewInClusterClient()
		if err != nil {
			return nil, err
		}
		cm, err := k8sx.NewConfigMapSource(client, k8sx.Options{Name: opts.configMap, Namespace: opts.namespace, Logger: logger})
		if err != nil {
			return nil, err
		}
		st.remote = append(st.remote, cm)
		src, err := guard(cm)
		if err != nil {
			return nil, err
		}
		if err := add(src); err != nil {
			return nil, err
		}
	}

	return st, nil
}

// start loads remote sources. On failure the ones already started are stopped.
func (st *stack) start(ctx context.Context) error {
	for i, svc := range st.remote {
		if err := svc.Start(ctx); err != nil {
			for _, started := range st.remote[:i] {
				_ = started.Stop(ctx)
			}
			return err
		}
	}
	return nil
}

// stop ends remote watches.
func (st *stack) stop(ctx context.Context) error {
	var first error
	for _, svc := range st.remote {
		if err := svc.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// refresher runs the stack's pollers as a runtimex.Service and stops remote
// sources on shutdown.
type refresher struct {
	stack  *stack
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (r *refresher) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for _, poll := range r.stack.pollers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			poll(ctx)
		}()
	}
	return nil
}

func (r *refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return r.stack.stop(ctx)
}
