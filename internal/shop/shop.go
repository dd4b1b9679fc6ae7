// Package shop implements player-built sign shops: the registry that maps
// world locations to shops, the build protocol that negotiates overlapping
// shops, and the exchange protocol run when a player uses a shop.
//
// A shop is anchored at a sign whose first line names its kind ("[buy]",
// "[isell]", "[device]", ...) and whose last line carries the price. Most
// kinds also occupy an auxiliary location staged by the builder beforehand: a
// stock container or a device. The [Registry] indexes every occupied location
// and guarantees that no location belongs to two shops.
//
// All host-world access goes through the collaborator interfaces bundled in
// [Env]. A [Service] serialises every operation behind one lock.
package shop

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/pkg/types"
)

// Kind tags the behaviour of a shop.
type Kind string

const (
	KindBuy       Kind = "buy"
	KindSell      Kind = "sell"
	KindTrade     Kind = "trade"
	KindIBuy      Kind = "ibuy"
	KindISell     Kind = "isell"
	KindITrade    Kind = "itrade"
	KindDevice    Kind = "device"
	KindDeviceOn  Kind = "deviceon"
	KindDeviceOff Kind = "deviceoff"
)

// Kinds lists every shop kind in dispatch order.
var Kinds = []Kind{
	KindITrade, KindIBuy, KindISell,
	KindTrade, KindBuy, KindSell,
	KindDevice, KindDeviceOn, KindDeviceOff,
}

// IsValid reports whether k is a recognised shop kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindBuy, KindSell, KindTrade, KindIBuy, KindISell, KindITrade,
		KindDevice, KindDeviceOn, KindDeviceOff:
		return true
	}
	return false
}

// inventoryBacked reports whether the kind settles its price in currency
// items instead of economy accounts.
func (k Kind) inventoryBacked() bool {
	return k == KindIBuy || k == KindISell || k == KindITrade
}

// ParseLabel maps a sign's first line to a shop kind. Matching is
// case-insensitive and requires the brackets: "[iBuy]" yields [KindIBuy].
func ParseLabel(line string) (Kind, bool) {
	s := strings.ToLower(strings.TrimSpace(line))
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	k := Kind(s[1 : len(s)-1])
	return k, k.IsValid()
}

// Marker is the status shown on a shop's anchor sign.
type Marker int

const (
	// MarkerReset is the neutral colour of a sign that is not an active shop.
	MarkerReset Marker = iota
	// MarkerOK marks a shop ready for use.
	MarkerOK
	// MarkerFail marks a shop whose last exchange failed.
	MarkerFail
)

// String returns the marker name.
func (m Marker) String() string {
	switch m {
	case MarkerOK:
		return "ok"
	case MarkerFail:
		return "fail"
	default:
		return "reset"
	}
}

// Shop is a registered entity occupying one or more locations.
//
// Implementations are not safe for concurrent use; a [Service] serialises
// all calls.
type Shop interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Anchor returns the sign location where configuration is read and the
	// marker is shown.
	Anchor() types.Location

	// Owner returns the owning player. ok is false for unclaimed shops.
	Owner() (id uuid.UUID, ok bool)

	// Locations returns every location the shop occupies, anchor first.
	Locations() []types.Location

	// Info describes the shop's current offer to actor and refreshes the
	// marker. It never fails.
	Info(ctx context.Context, actor types.Actor)

	// Trigger runs one exchange for actor. A nil return means every transfer
	// happened; otherwise none did, the actor was told why and the marker
	// shows FAIL.
	Trigger(ctx context.Context, actor types.Actor) error

	// Update refreshes the OK marker and reports whether the shop is still
	// usable.
	Update(ctx context.Context) bool

	// Destroy removes the shop from the registry if actor owns it.
	Destroy(ctx context.Context, actor types.Actor) bool

	// IsOwner reports whether actor owns the shop or holds the admin permission.
	IsOwner(actor types.Actor) bool

	// Record returns the persistable form of the shop.
	Record() Record
}

// base carries the state and behaviour shared by all variants.
type base struct {
	env    *Env
	kind   Kind
	anchor types.Location
	owner  uuid.UUID // uuid.Nil when unclaimed
	price  int
}

func (b *base) Kind() Kind             { return b.kind }
func (b *base) Anchor() types.Location { return b.anchor }

func (b *base) Owner() (uuid.UUID, bool) {
	return b.owner, b.owner != uuid.Nil
}

func (b *base) IsOwner(actor types.Actor) bool {
	if b.owner != uuid.Nil && b.owner == actor.ID {
		return true
	}
	return b.env.isAdmin(actor)
}

// claimOwner makes actor the owner of the shop.
func (b *base) claimOwner(actor types.Actor) {
	b.owner = actor.ID
	b.env.Messenger.Notify(actor, "You now own this shop.")
}

// maybeClaim applies the claim-on-trigger policy after a successful exchange.
func (b *base) maybeClaim(actor types.Actor) {
	if !b.env.Policy.ClaimUnownedOnTrigger || b.owner != uuid.Nil {
		return
	}
	if b.env.isAdmin(actor) {
		return
	}
	b.claimOwner(actor)
}

func (b *base) Update(ctx context.Context) bool {
	b.setMarker(ctx, MarkerOK)
	return true
}

// destroy implements [Shop.Destroy] for the variant s embedding b. A shop
// the registry no longer maps at its anchor has already been replaced or
// removed and leaves the marker alone.
func (b *base) destroy(ctx context.Context, s Shop, actor types.Actor) bool {
	if !b.IsOwner(actor) {
		return false
	}
	if b.env.registry != nil {
		if cur, ok := b.env.registry.Get(b.anchor); !ok || cur != s {
			return false
		}
	}
	b.setMarker(ctx, MarkerReset)
	if b.env.registry != nil {
		b.env.registry.Remove(s)
	}
	return true
}

func (b *base) setMarker(ctx context.Context, m Marker) {
	if err := b.env.Signs.SetMarker(ctx, b.anchor, m); err != nil {
		b.env.logger(ctx).Warn("set shop marker", "anchor", b.anchor, "marker", m, "err", err)
	}
}

// fail tells actor why the exchange did not happen, shows the FAIL marker
// and returns err wrapped with the reason.
func (b *base) fail(ctx context.Context, actor types.Actor, err error, reason string) error {
	b.env.Messenger.Notify(actor, reason)
	b.setMarker(ctx, MarkerFail)
	return &Error{Err: err, Reason: reason}
}

// record fills the fields every variant shares.
func (b *base) record() Record {
	r := Record{Kind: b.kind, Anchor: b.anchor, Price: b.price}
	if b.owner != uuid.Nil {
		id := b.owner
		r.Owner = &id
	}
	return r
}
