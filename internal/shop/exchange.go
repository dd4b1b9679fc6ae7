package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/signshop/pkg/types"
)

// exchangeShop trades a fixed item template for a price. Buy kinds sell the
// template to the actor out of the stock container; sell kinds take it from
// the actor into the stock container and pay out.
type exchangeShop struct {
	base
	stock  types.Location
	items  types.Items
	medium medium
}

var _ Shop = (*exchangeShop)(nil)

func newExchange(ctx context.Context, env *Env, kind Kind, actor types.Actor, anchor types.Location, lines []string) (Shop, error) {
	b, err := prepare(env, kind, actor, anchor, lines)
	if err != nil {
		return nil, err
	}
	sel, ok := staged(env, actor, 1)
	if !ok {
		return nil, configErr(ErrInvalidConfig, fmt.Sprintf("%s signs require a container.", titleCase(kind)))
	}
	items, err := containerContents(ctx, env, sel[0])
	if err != nil {
		return nil, err
	}
	return &exchangeShop{base: b, stock: sel[0], items: items, medium: newMedium(env, kind)}, nil
}

// sells reports whether the shop sells to the actor.
func (s *exchangeShop) sells() bool {
	return s.kind == KindBuy || s.kind == KindIBuy
}

func (s *exchangeShop) Locations() []types.Location {
	return []types.Location{s.anchor, s.stock}
}

func (s *exchangeShop) Info(ctx context.Context, actor types.Actor) {
	verb := "Sell"
	if s.sells() {
		verb = "Buy"
	}
	s.env.Messenger.Notify(actor, fmt.Sprintf("%s %s for %d %s?", verb, s.items, s.price, s.medium.name()))
	s.Update(ctx)
}

func (s *exchangeShop) Update(ctx context.Context) bool {
	if !s.env.World.IsContainer(ctx, s.stock) {
		s.setMarker(ctx, MarkerFail)
		return false
	}
	return s.base.Update(ctx)
}

func (s *exchangeShop) Destroy(ctx context.Context, actor types.Actor) bool {
	return s.destroy(ctx, s, actor)
}

func (s *exchangeShop) Trigger(ctx context.Context, actor types.Actor) error {
	if s.sells() {
		return s.sellTo(ctx, actor)
	}
	return s.buyFrom(ctx, actor)
}

// sellTo runs a Buy/IBuy exchange: the actor pays, the stock delivers.
func (s *exchangeShop) sellTo(ctx context.Context, actor types.Actor) error {
	stock := types.ContainerHolder(s.stock)
	customer := actorParty(actor)

	ok, err := holds(ctx, s.env, stock, s.items)
	if err != nil {
		return s.unavailable(ctx, actor, err)
	}
	if !ok {
		return s.fail(ctx, actor, ErrInsufficient, "This shop doesn't have enough stock.")
	}
	if ok, err = s.medium.affords(ctx, customer, s.price); err != nil {
		return s.unavailable(ctx, actor, err)
	} else if !ok {
		return s.fail(ctx, actor, ErrInsufficient, fmt.Sprintf("You don't have enough %s.", s.medium.name()))
	}

	lg := newLedger(s.env.logger(ctx))
	if err := s.medium.pay(ctx, lg, customer, s.shopParty(), s.price); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := deliver(ctx, lg, s.env, stock, actor, s.items, s.anchor); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := lg.commit(ctx); err != nil {
		return s.abort(ctx, actor, lg, err)
	}

	s.env.Messenger.Notify(actor, fmt.Sprintf("You bought %s for %d %s.", s.items, s.price, s.medium.name()))
	s.completed(ctx, actor)
	return nil
}

// buyFrom runs a Sell/ISell exchange: the actor hands over the items, the shop pays.
func (s *exchangeShop) buyFrom(ctx context.Context, actor types.Actor) error {
	stock := types.ContainerHolder(s.stock)
	customer := actorParty(actor)
	payer := s.shopParty()

	ok, err := holds(ctx, s.env, customer.holder, s.items)
	if err != nil {
		return s.unavailable(ctx, actor, err)
	}
	if !ok {
		return s.fail(ctx, actor, ErrInsufficient, "You don't have the required items.")
	}
	if ok, err = s.medium.affords(ctx, payer, s.price); err != nil {
		return s.unavailable(ctx, actor, err)
	} else if !ok {
		reason := "The shop owner can't afford this."
		if s.medium.items() {
			reason = fmt.Sprintf("This shop doesn't have enough %s.", s.medium.name())
		}
		return s.fail(ctx, actor, ErrInsufficient, reason)
	}

	lg := newLedger(s.env.logger(ctx))
	if err := moveItems(ctx, lg, s.env, customer.holder, stock, s.items); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := s.medium.pay(ctx, lg, payer, customer, s.price); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := lg.commit(ctx); err != nil {
		return s.abort(ctx, actor, lg, err)
	}

	s.env.Messenger.Notify(actor, fmt.Sprintf("You sold %s for %d %s.", s.items, s.price, s.medium.name()))
	s.completed(ctx, actor)
	return nil
}

// shopParty is the owner's account paired with the stock container.
func (s *exchangeShop) shopParty() party {
	return party{account: s.owner, holder: types.ContainerHolder(s.stock)}
}

func (s *exchangeShop) Record() Record {
	r := s.record()
	stock := s.stock
	r.Stock = &stock
	r.Items = s.items.Clone()
	return r
}

// completed finishes a successful exchange.
func (b *base) completed(ctx context.Context, actor types.Actor) {
	b.maybeClaim(actor)
	b.Update(ctx)
}

// unavailable reports a collaborator failure during the precondition checks.
func (b *base) unavailable(ctx context.Context, actor types.Actor, err error) error {
	b.env.logger(ctx).Warn("shop check failed", "kind", b.kind, "anchor", b.anchor, "actor", actor, "err", err)
	return b.fail(ctx, actor, err, "This shop is unavailable right now.")
}

// abort unwinds lg after a failed transfer and reports the failure.
func (b *base) abort(ctx context.Context, actor types.Actor, lg *ledger, err error) error {
	lg.rollback(ctx)
	b.env.logger(ctx).Warn("shop exchange aborted", "kind", b.kind, "anchor", b.anchor, "actor", actor, "err", err)
	if errors.Is(err, ErrInventoryFull) {
		return b.fail(ctx, actor, err, "There is no room for the items.")
	}
	return b.fail(ctx, actor, err, "The exchange could not be completed.")
}
