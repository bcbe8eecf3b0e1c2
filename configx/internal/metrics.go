package internal

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "go.eggybyte.com/scf/configx"

// metrics holds the manager instruments.
type metrics struct {
	manager          attribute.KeyValue
	resolutions      metric.Int64Counter
	sourceErrors     metric.Int64Counter
	filterRejections metric.Int64Counter
	changes          metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider, managerName string) (*metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(meterName)
	m := &metrics{manager: attribute.String("manager", managerName)}

	var err error
	if m.resolutions, err = meter.Int64Counter("scf.property.resolutions",
		metric.WithDescription("Property resolutions by outcome"),
		metric.WithUnit("{resolution}")); err != nil {
		return nil, err
	}
	if m.sourceErrors, err = meter.Int64Counter("scf.source.errors",
		metric.WithDescription("Source lookups that failed or panicked"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.filterRejections, err = meter.Int64Counter("scf.filter.rejections",
		metric.WithDescription("Source values rejected by a value filter"),
		metric.WithUnit("{rejection}")); err != nil {
		return nil, err
	}
	if m.changes, err = meter.Int64Counter("scf.property.changes",
		metric.WithDescription("Property values replaced by a change pass"),
		metric.WithUnit("{change}")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) resolved(ctx context.Context, outcome string) {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(m.manager, attribute.String("outcome", outcome)))
}

func (m *metrics) sourceFailed(ctx context.Context, source string) {
	m.sourceErrors.Add(ctx, 1, metric.WithAttributes(m.manager, attribute.String("source", source)))
}

func (m *metrics) filterRejected(ctx context.Context, source string) {
	m.filterRejections.Add(ctx, 1, metric.WithAttributes(m.manager, attribute.String("source", source)))
}

func (m *metrics) changed(ctx context.Context) {
	m.changes.Add(ctx, 1, metric.WithAttributes(m.manager))
}
