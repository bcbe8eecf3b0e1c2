package internal

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterPoolMetrics observes the connection pool of a store backing a
// configuration source.
func RegisterPoolMetrics(meter metric.Meter, name string, db *sql.DB) (metric.Registration, error) {
	attrs := metric.WithAttributes(attribute.String("store", name))

	openConns, err := meter.Int64ObservableGauge(
		"scf.store.pool.open_connections",
		metric.WithDescription("Number of established connections both in use and idle"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	inUse, err := meter.Int64ObservableGauge(
		"scf.store.pool.in_use",
		metric.WithDescription("Number of connections currently in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}
	waitCount, err := meter.Int64ObservableCounter(
		"scf.store.pool.waits",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()
			observer.ObserveInt64(openConns, int64(stats.OpenConnections), attrs)
			observer.ObserveInt64(inUse, int64(stats.InUse), attrs)
			observer.ObserveInt64(waitCount, stats.WaitCount, attrs)
			return nil
		},
		openConns, inUse, waitCount,
	)
}

// ManagerStats reports the current size of a manager.
type ManagerStats func() (properties, sources int)

// RegisterManagerMetrics observes how many properties and sources a manager
// holds.
func RegisterManagerMetrics(meter metric.Meter, name string, stats ManagerStats) (metric.Registration, error) {
	attrs := metric.WithAttributes(attribute.String("manager", name))

	properties, err := meter.Int64ObservableGauge(
		"scf.manager.properties",
		metric.WithDescription("Number of properties created by the manager"),
		metric.WithUnit("{property}"),
	)
	if err != nil {
		return nil, err
	}
	sources, err := meter.Int64ObservableGauge(
		"scf.manager.sources",
		metric.WithDescription("Number of sources consulted by the manager"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			p, s := stats()
			observer.ObserveInt64(properties, int64(p), attrs)
			observer.ObserveInt64(sources, int64(s), attrs)
			return nil
		},
		properties, sources,
	)
}
