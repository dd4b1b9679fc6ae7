package shop

import (
	"context"
	"fmt"

	"github.com/MrWong99/signshop/pkg/types"
)

// tradeShop swaps one item template for another and charges a fee (which
// may be zero). give is what the actor hands over; take is what the stock
// container hands back.
type tradeShop struct {
	base
	stock  types.Location
	give   types.Items
	take   types.Items
	medium medium
}

var _ Shop = (*tradeShop)(nil)

// newTrade needs two staged containers: the newest is the stock whose
// contents the actor receives, the one before it holds what the actor must
// give in return.
func newTrade(ctx context.Context, env *Env, kind Kind, actor types.Actor, anchor types.Location, lines []string) (Shop, error) {
	b, err := prepare(env, kind, actor, anchor, lines)
	if err != nil {
		return nil, err
	}
	sel, ok := staged(env, actor, 2)
	if !ok {
		return nil, configErr(ErrInvalidConfig, "Trade signs require a stock container and a container holding the price items.")
	}
	take, err := containerContents(ctx, env, sel[0])
	if err != nil {
		return nil, err
	}
	give, err := containerContents(ctx, env, sel[1])
	if err != nil {
		return nil, err
	}
	return &tradeShop{base: b, stock: sel[0], give: give, take: take, medium: newMedium(env, kind)}, nil
}

func (s *tradeShop) Locations() []types.Location {
	return []types.Location{s.anchor, s.stock}
}

func (s *tradeShop) Info(ctx context.Context, actor types.Actor) {
	msg := fmt.Sprintf("Trade %s for %s", s.give, s.take)
	if s.price > 0 {
		msg += fmt.Sprintf(" plus %d %s", s.price, s.medium.name())
	}
	s.env.Messenger.Notify(actor, msg+"?")
	s.Update(ctx)
}

func (s *tradeShop) Update(ctx context.Context) bool {
	if !s.env.World.IsContainer(ctx, s.stock) {
		s.setMarker(ctx, MarkerFail)
		return false
	}
	return s.base.Update(ctx)
}

func (s *tradeShop) Destroy(ctx context.Context, actor types.Actor) bool {
	return s.destroy(ctx, s, actor)
}

func (s *tradeShop) Trigger(ctx context.Context, actor types.Actor) error {
	stock := types.ContainerHolder(s.stock)
	customer := actorParty(actor)

	have, err := s.env.Inventories.Contents(ctx, customer.holder)
	if err != nil {
		return s.unavailable(ctx, actor, err)
	}
	if !hasEnough(have, s.give) {
		return s.fail(ctx, actor, ErrInsufficient, "You don't have the required items.")
	}
	// An item fee comes out of the same inventory as the give items.
	if !hasEnough(have, s.medium.withPrice(s.give, s.price)) {
		return s.fail(ctx, actor, ErrInsufficient, fmt.Sprintf("You don't have enough %s.", s.medium.name()))
	}
	if ok, err := holds(ctx, s.env, stock, s.take); err != nil {
		return s.unavailable(ctx, actor, err)
	} else if !ok {
		return s.fail(ctx, actor, ErrInsufficient, "This shop doesn't have enough stock.")
	}
	if !s.medium.items() {
		if ok, err := s.medium.affords(ctx, customer, s.price); err != nil {
			return s.unavailable(ctx, actor, err)
		} else if !ok {
			return s.fail(ctx, actor, ErrInsufficient, fmt.Sprintf("You don't have enough %s.", s.medium.name()))
		}
	}

	lg := newLedger(s.env.logger(ctx))
	shopSide := party{account: s.owner, holder: stock}
	if err := s.medium.pay(ctx, lg, customer, shopSide, s.price); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := moveItems(ctx, lg, s.env, customer.holder, stock, s.give); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := deliver(ctx, lg, s.env, stock, actor, s.take, s.anchor); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	if err := lg.commit(ctx); err != nil {
		return s.abort(ctx, actor, lg, err)
	}

	s.env.Messenger.Notify(actor, fmt.Sprintf("You traded %s for %s.", s.give, s.take))
	s.completed(ctx, actor)
	return nil
}

func (s *tradeShop) Record() Record {
	r := s.record()
	stock := s.stock
	r.Stock = &stock
	r.Give = s.give.Clone()
	r.Items = s.take.Clone()
	return r
}
