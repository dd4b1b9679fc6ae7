package shop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/signshop/internal/observe"
	"github.com/MrWong99/signshop/pkg/types"
)

// Service is the single entry point for player interactions with shops.
// Every operation runs as one critical section over the registry, so a
// build spanning several locations is never observed half-applied and no
// exchange interleaves with another between its checks and its transfers.
//
// Service performs no storage I/O; callers persist [Service.Records]
// outside the lock.
type Service struct {
	mu      sync.Mutex
	env     *Env
	builder *Builder
	metrics *observe.Metrics
}

// Option configures a [Service].
type Option func(*Service)

// WithMetrics records operation counters and latencies to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a [Service] with an empty registry. env is owned by the
// service from here on. A nil env.Selections is replaced by a
// [SelectionStack].
func NewService(env *Env, opts ...Option) *Service {
	if env.Selections == nil {
		env.Selections = NewSelectionStack()
	}
	env.registry = NewRegistry()
	s := &Service{env: env, builder: NewBuilder(env)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build creates a shop from the sign at anchor. See [Builder.Build].
func (s *Service) Build(ctx context.Context, actor types.Actor, anchor types.Location) (Record, error) {
	ctx, span := observe.StartSpan(ctx, "shop.build", trace.WithAttributes(
		attribute.String("anchor", anchor.String()),
		attribute.String("actor", actor.ID.String()),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.shopCount()
	sh, err := s.builder.Build(ctx, actor, anchor)
	kind := Kind("")
	if sh != nil {
		kind = sh.Kind()
	}
	s.record(ctx, span, "build", kind, err)
	s.trackActive(ctx, before)
	if err != nil {
		return Record{}, err
	}
	return sh.Record(), nil
}

// Trigger runs the exchange of the shop anchored at loc.
func (s *Service) Trigger(ctx context.Context, actor types.Actor, loc types.Location) error {
	ctx, span := observe.StartSpan(ctx, "shop.trigger", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.String("actor", actor.ID.String()),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, err := s.anchored(loc)
	if err != nil {
		s.record(ctx, span, "trigger", "", err)
		return err
	}
	start := time.Now()
	err = sh.Trigger(ctx, actor)
	if s.metrics != nil {
		s.metrics.TriggerDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("kind", string(sh.Kind()))))
	}
	s.record(ctx, span, "trigger", sh.Kind(), err)
	return err
}

// Inspect describes the shop at loc to actor.
func (s *Service) Inspect(ctx context.Context, actor types.Actor, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.env.registry.Get(loc)
	if !ok {
		return ErrNoShop
	}
	sh.Info(ctx, actor)
	return nil
}

// Destroy removes the shop occupying loc on behalf of actor. Hosts call it
// when any block of a shop is broken and cancel the break on error.
func (s *Service) Destroy(ctx context.Context, actor types.Actor, loc types.Location) error {
	ctx, span := observe.StartSpan(ctx, "shop.destroy", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.String("actor", actor.ID.String()),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.env.registry.Get(loc)
	if !ok {
		s.record(ctx, span, "destroy", "", ErrNoShop)
		return ErrNoShop
	}
	before := s.shopCount()
	var err error
	if sh.Destroy(ctx, actor) {
		s.env.Messenger.Notify(actor, "Shop removed.")
		s.env.logger(ctx).Info("shop destroyed", "kind", sh.Kind(), "anchor", sh.Anchor(), "actor", actor)
	} else {
		err = &Error{Err: ErrPermissionDenied, Reason: "This shop belongs to someone else."}
		s.env.Messenger.Notify(actor, Reason(err))
	}
	s.record(ctx, span, "destroy", sh.Kind(), err)
	s.trackActive(ctx, before)
	return err
}

// Stage pushes the container or device at loc onto actor's selection for
// the next shop sign they build.
func (s *Service) Stage(ctx context.Context, actor types.Actor, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.env.World
	if !w.IsContainer(ctx, loc) && !w.IsDevice(ctx, loc) {
		err := &Error{Err: ErrInvalidConfig, Reason: "Only containers and levers can be staged for a shop."}
		s.env.Messenger.Notify(actor, Reason(err))
		return err
	}
	if sh, ok := s.env.registry.Get(loc); ok && !sh.IsOwner(actor) {
		err := &Error{Err: ErrPermissionDenied, Reason: "This belongs to someone else's shop."}
		s.env.Messenger.Notify(actor, Reason(err))
		return err
	}
	s.env.Selections.Push(actor.ID, loc)
	s.env.Messenger.Notify(actor, fmt.Sprintf("Staged %s for your next shop sign.", loc))
	return nil
}

// CanAccess reports whether actor may open or switch the block at loc.
// Stock containers and devices of a shop are reserved to its owner; anchors
// and blocks outside any shop are free to use.
func (s *Service) CanAccess(ctx context.Context, actor types.Actor, loc types.Location) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.env.registry.Get(loc)
	if !ok || sh.Anchor() == loc || sh.IsOwner(actor) {
		return true
	}
	s.env.Messenger.Notify(actor, "This is protected by a shop.")
	return false
}

// Lookup returns the record of the shop occupying loc.
func (s *Service) Lookup(loc types.Location) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.env.registry.Get(loc)
	if !ok {
		return Record{}, false
	}
	return sh.Record(), true
}

// Records snapshots every registered shop, ordered by anchor.
func (s *Service) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	shops := s.env.registry.Shops()
	out := make([]Record, len(shops))
	for i, sh := range shops {
		out[i] = sh.Record()
	}
	return out
}

// Restore replaces the registry with shops rebuilt from records. It fails
// with [ErrRegistryCorrupt] if two records share a location; the current
// registry is kept on any error.
func (s *Service) Restore(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shops := make([]Shop, 0, len(records))
	for _, r := range records {
		sh, err := FromRecord(s.env, r)
		if err != nil {
			return err
		}
		shops = append(shops, sh)
	}
	reg, err := LoadRegistry(shops)
	if err != nil {
		return err
	}
	before := s.shopCount()
	s.env.registry = reg
	s.trackActive(ctx, before)
	for _, sh := range shops {
		if !sh.Update(ctx) {
			s.env.logger(ctx).Warn("restored shop is not usable", "kind", sh.Kind(), "anchor", sh.Anchor())
		}
	}
	return nil
}

// SetPolicy swaps the shop rules, e.g. after a config reload.
func (s *Service) SetPolicy(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env.Policy = p
}

// Count returns the number of registered shops.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shopCount()
}

// anchored returns the shop whose sign is at loc.
func (s *Service) anchored(loc types.Location) (Shop, error) {
	sh, ok := s.env.registry.Get(loc)
	if !ok || sh.Anchor() != loc {
		return nil, ErrNoShop
	}
	return sh, nil
}

func (s *Service) shopCount() int {
	return len(s.env.registry.Shops())
}

// trackActive moves the active-shops gauge by the change since before.
func (s *Service) trackActive(ctx context.Context, before int) {
	if s.metrics == nil {
		return
	}
	if d := s.shopCount() - before; d != 0 {
		s.metrics.ActiveShops.Add(ctx, int64(d))
	}
}

// record reports the outcome of op to the span and the metrics.
func (s *Service) record(ctx context.Context, span trace.Span, op string, kind Kind, err error) {
	status := Status(err)
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.String("status", status))
	if err != nil && !errors.Is(err, ErrNotAShop) {
		span.SetStatus(codes.Error, Reason(err))
	}
	if s.metrics != nil {
		s.metrics.RecordShopOp(ctx, op, string(kind), status)
	}
}

// Status classifies err into a short label for metrics and API responses.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotAShop):
		return "not_a_shop"
	case errors.Is(err, ErrNoShop):
		return "no_shop"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrInsufficient):
		return "insufficient"
	case errors.Is(err, ErrOwnershipConflict):
		return "conflict"
	case errors.Is(err, ErrRegistryCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}
