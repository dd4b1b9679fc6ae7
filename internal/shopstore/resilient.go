package shopstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/signshop/internal/resilience"
	"github.com/MrWong99/signshop/internal/shop"
)

// Resilient guards a primary [Store] with a circuit breaker. When a fallback
// is configured, saves the primary rejects are written there instead so the
// latest registry survives an outage. Load only ever reads the primary: an
// empty fallback must never be mistaken for an empty registry.
type Resilient struct {
	primary Store
	group   *resilience.FallbackGroup[Store]
	stores  []Store
}

// Compile-time interface checks.
var (
	_ Store  = (*Resilient)(nil)
	_ Pinger = (*Resilient)(nil)
)

// NewResilient wraps primary. fallback may be nil.
func NewResilient(primary Store, primaryName string, fallback Store, cfg resilience.FallbackConfig) *Resilient {
	r := &Resilient{
		primary: primary,
		group:   resilience.NewFallbackGroup(primary, primaryName, cfg),
		stores:  []Store{primary},
	}
	if fallback != nil {
		r.group.AddFallback(primaryName+"-fallback", fallback)
		r.stores = append(r.stores, fallback)
	}
	return r
}

// Load implements [Store.Load] through the primary's breaker.
func (r *Resilient) Load(ctx context.Context) ([]shop.Record, error) {
	var records []shop.Record
	err := r.group.Primary().Execute(func() error {
		var err error
		records, err = r.primary.Load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Save implements [Store.Save].
func (r *Resilient) Save(ctx context.Context, records []shop.Record) error {
	_, err := r.group.Execute(func(s Store) error {
		return s.Save(ctx, records)
	})
	if err != nil {
		return fmt.Errorf("shopstore: save: %w", err)
	}
	return nil
}

// Ping reports the primary as unavailable while its breaker is open and
// otherwise forwards to it when it implements [Pinger].
func (r *Resilient) Ping(ctx context.Context) error {
	if r.group.Primary().State() == resilience.StateOpen {
		return resilience.ErrCircuitOpen
	}
	if p, ok := r.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Breaker returns the circuit breaker guarding the primary.
func (r *Resilient) Breaker() *resilience.CircuitBreaker {
	return r.group.Primary()
}

// Close implements [Store.Close] and closes every wrapped store.
func (r *Resilient) Close() error {
	var errs []error
	for _, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
