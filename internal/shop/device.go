package shop

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/pkg/types"
)

// deviceShop charges a flat price to switch a device (a lever) it occupies.
// KindDevice toggles it; KindDeviceOn and KindDeviceOff force a state.
type deviceShop struct {
	base
	device types.Location
	medium medium
}

var _ Shop = (*deviceShop)(nil)

func newDevice(ctx context.Context, env *Env, kind Kind, actor types.Actor, anchor types.Location, lines []string) (Shop, error) {
	b, err := prepare(env, kind, actor, anchor, lines)
	if err != nil {
		return nil, err
	}
	sel, ok := staged(env, actor, 1)
	if !ok || !env.World.IsDevice(ctx, sel[0]) {
		return nil, configErr(ErrInvalidConfig, "Device signs require a lever.")
	}
	return &deviceShop{base: b, device: sel[0], medium: newMedium(env, kind)}, nil
}

func (s *deviceShop) Locations() []types.Location {
	return []types.Location{s.anchor, s.device}
}

// action names what a trigger does to the device.
func (s *deviceShop) action() string {
	switch s.kind {
	case KindDeviceOn:
		return "Activate"
	case KindDeviceOff:
		return "Deactivate"
	default:
		return "Toggle"
	}
}

func (s *deviceShop) Info(ctx context.Context, actor types.Actor) {
	s.env.Messenger.Notify(actor, fmt.Sprintf("%s for %d %s?", s.action(), s.price, s.medium.name()))
	s.Update(ctx)
}

func (s *deviceShop) Update(ctx context.Context) bool {
	if !s.env.World.IsDevice(ctx, s.device) {
		s.setMarker(ctx, MarkerFail)
		return false
	}
	return s.base.Update(ctx)
}

func (s *deviceShop) Destroy(ctx context.Context, actor types.Actor) bool {
	return s.destroy(ctx, s, actor)
}

func (s *deviceShop) Trigger(ctx context.Context, actor types.Actor) error {
	customer := actorParty(actor)
	if ok, err := s.medium.affords(ctx, customer, s.price); err != nil {
		return s.unavailable(ctx, actor, err)
	} else if !ok {
		return s.fail(ctx, actor, ErrInsufficient, "You don't have enough money!")
	}
	was, err := s.env.World.Powered(ctx, s.device)
	if err != nil {
		return s.unavailable(ctx, actor, err)
	}
	target := !was
	switch s.kind {
	case KindDeviceOn:
		target = true
	case KindDeviceOff:
		target = false
	}

	lg := newLedger(s.env.logger(ctx))
	if err := s.medium.pay(ctx, lg, customer, party{account: uuid.Nil}, s.price); err != nil {
		return s.abort(ctx, actor, lg, err)
	}
	err = lg.apply(ctx,
		func(ctx context.Context) error { return s.env.World.SetPowered(ctx, s.device, target) },
		func(ctx context.Context) error { return s.env.World.SetPowered(ctx, s.device, was) },
	)
	if err != nil {
		return s.abort(ctx, actor, lg, err)
	}

	state := "deactivated"
	if target {
		state = "activated"
	}
	s.env.Messenger.Notify(actor, fmt.Sprintf("Device %s for %d %s.", state, s.price, s.medium.name()))
	s.completed(ctx, actor)
	return nil
}

func (s *deviceShop) Record() Record {
	r := s.record()
	dev := s.device
	r.Device = &dev
	return r
}
