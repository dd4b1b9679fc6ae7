package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/signshop/pkg/types"
)

// planAction is what a commit does to one location of a new shop.
type planAction int

const (
	// actionClaim takes a free location.
	actionClaim planAction = iota
	// actionReplace destroys the current occupant first.
	actionReplace
)

// planStep pairs a location with the shop occupying it before the build.
type planStep struct {
	loc      types.Location
	occupant Shop
	action   planAction
}

// buildPlan is computed by the check pass and applied by the commit pass.
// Nothing is mutated until the whole plan is known to be valid.
type buildPlan struct {
	shop  Shop
	steps []planStep
}

// replaced returns the distinct shops the plan destroys, in location order.
func (p buildPlan) replaced() []Shop {
	var out []Shop
	seen := make(map[Shop]struct{})
	for _, st := range p.steps {
		if st.action != actionReplace {
			continue
		}
		if _, dup := seen[st.occupant]; dup {
			continue
		}
		seen[st.occupant] = struct{}{}
		out = append(out, st.occupant)
	}
	return out
}

// Builder creates shops from signs and registers them, overriding shops the
// builder owns and refusing to touch anyone else's.
type Builder struct {
	env *Env
}

// NewBuilder returns a [Builder] working against env and its registry.
func NewBuilder(env *Env) *Builder {
	return &Builder{env: env}
}

// Build turns the sign at anchor into a shop owned by actor.
//
// It returns [ErrNotAShop] without telling the actor anything when the sign
// does not name a shop kind. Every other failure is reported to the actor
// and leaves the registry exactly as it was.
func (b *Builder) Build(ctx context.Context, actor types.Actor, anchor types.Location) (Shop, error) {
	s, err := b.construct(ctx, actor, anchor)
	if err != nil {
		if !errors.Is(err, ErrNotAShop) {
			b.env.Messenger.Notify(actor, Reason(err))
		}
		return nil, err
	}

	plan, err := b.check(ctx, actor, s)
	if err != nil {
		b.env.Messenger.Notify(actor, Reason(err))
		return nil, err
	}
	b.commit(ctx, actor, plan)

	b.env.Messenger.Notify(actor, fmt.Sprintf("You have set up a %s sign:", s.Kind()))
	s.Info(ctx, actor)
	return s, nil
}

// construct reads the sign and runs the matching variant constructor.
func (b *Builder) construct(ctx context.Context, actor types.Actor, anchor types.Location) (Shop, error) {
	lines, ok := b.env.Signs.Lines(ctx, anchor)
	if !ok || len(lines) == 0 {
		return nil, ErrNotAShop
	}
	kind, ok := ParseLabel(lines[0])
	if !ok {
		return nil, ErrNotAShop
	}
	newShop, ok := constructors[kind]
	if !ok {
		return nil, ErrNotAShop
	}
	return newShop(ctx, b.env, kind, actor, anchor, lines)
}

// check is the first pass: it inspects every location of s and decides
// what the commit will do there. If any occupant belongs to someone else,
// every occupant seen gets its OK marker back and the build is refused.
func (b *Builder) check(ctx context.Context, actor types.Actor, s Shop) (buildPlan, error) {
	plan := buildPlan{shop: s}
	conflict := false
	for _, loc := range s.Locations() {
		occupant, ok := b.env.registry.Get(loc)
		if !ok {
			plan.steps = append(plan.steps, planStep{loc: loc, action: actionClaim})
			continue
		}
		if !occupant.IsOwner(actor) {
			conflict = true
		}
		plan.steps = append(plan.steps, planStep{loc: loc, occupant: occupant, action: actionReplace})
	}
	if !conflict {
		return plan, nil
	}

	for _, occupant := range plan.replaced() {
		occupant.Update(ctx)
	}
	b.env.logger(ctx).Info("shop build refused",
		"kind", s.Kind(), "anchor", s.Anchor(), "actor", actor)
	return buildPlan{}, &Error{Err: ErrOwnershipConflict, Reason: "This shop would override a shop you do not own. Abort."}
}

// commit is the second pass: it destroys the replaced shops, registers the
// new one and consumes the actor's staged selection.
func (b *Builder) commit(ctx context.Context, actor types.Actor, plan buildPlan) {
	for _, old := range plan.replaced() {
		if !old.Destroy(ctx, actor) {
			// check already proved ownership; keep the index consistent anyway.
			b.env.registry.Remove(old)
		}
		b.env.logger(ctx).Info("shop replaced", "kind", old.Kind(), "anchor", old.Anchor(), "actor", actor)
	}
	b.env.registry.Add(plan.shop)
	b.env.Selections.Clear(actor.ID)
	b.env.logger(ctx).Info("shop built",
		"kind", plan.shop.Kind(), "anchor", plan.shop.Anchor(), "actor", actor)
}
