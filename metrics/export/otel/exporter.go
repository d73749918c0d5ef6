// Package otel bridges engine metrics into an OpenTelemetry meter.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/taskhive/authstack"
)

// Register creates one observable counter per engine metric on meter. The
// returned registration can be unregistered to stop the export; counters
// are read lazily at collection time.
func Register(meter metric.Meter, m *authstack.Metrics) (metric.Registration, error) {
	ids := authstack.MetricIDs()
	counters := make([]metric.Int64ObservableCounter, len(ids))
	observables := make([]metric.Observable, len(ids))

	for i, id := range ids {
		c, err := meter.Int64ObservableCounter(
			"authstack."+id.String(),
			metric.WithDescription("authstack engine counter "+id.String()),
		)
		if err != nil {
			return nil, fmt.Errorf("otel: create counter %s: %w", id, err)
		}
		counters[i] = c
		observables[i] = c
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, id := range ids {
			o.ObserveInt64(counters[i], int64(m.Get(id)))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return reg, nil
}
