package shopstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/signshop/internal/observe"
	"github.com/MrWong99/signshop/internal/shop"
)

// instrumented decorates a [Store] with spans, save latency and error
// counters labelled by backend.
type instrumented struct {
	Store
	backend string
	metrics *observe.Metrics
}

// Instrument wraps s so that every Load and Save is traced and recorded to
// m under the given backend name.
func Instrument(s Store, backend string, m *observe.Metrics) Store {
	return &instrumented{Store: s, backend: backend, metrics: m}
}

func (s *instrumented) Load(ctx context.Context) ([]shop.Record, error) {
	ctx, span := observe.StartSpan(ctx, "shopstore.load")
	defer span.End()
	span.SetAttributes(attribute.String("backend", s.backend))

	records, err := s.Store.Load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordStoreError(ctx, s.backend, "load")
		return nil, err
	}
	span.SetAttributes(attribute.Int("shops", len(records)))
	return records, nil
}

func (s *instrumented) Save(ctx context.Context, records []shop.Record) error {
	ctx, span := observe.StartSpan(ctx, "shopstore.save")
	defer span.End()
	span.SetAttributes(attribute.String("backend", s.backend), attribute.Int("shops", len(records)))

	start := time.Now()
	err := s.Store.Save(ctx, records)
	s.metrics.StoreSaveDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("backend", s.backend)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordStoreError(ctx, s.backend, "save")
		return err
	}
	return nil
}

// Ping forwards to the wrapped store when it implements [Pinger].
func (s *instrumented) Ping(ctx context.Context) error {
	if p, ok := s.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
