package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/pkg/types"
)

// ledger applies the transfers of one exchange and remembers how to undo
// them. If any step fails, every applied step is compensated in reverse
// order so the exchange is all-or-nothing.
//
// Items dropped into the world cannot be picked back up, so a drop is held
// back until every reversible step succeeded and runs as the single last
// step in commit. A failed drop leaves the world untouched and the caller
// rolls the ledger back like after any other failed step.
type ledger struct {
	log  *slog.Logger
	undo []func(context.Context) error
	drop *pendingDrop
}

// pendingDrop is the one world drop an exchange may end with.
type pendingDrop struct {
	inv   Inventories
	at    types.Location
	from  types.Holder
	items types.Items
}

func newLedger(log *slog.Logger) *ledger {
	return &ledger{log: log}
}

// apply runs do and, on success, records undo for rollback.
func (l *ledger) apply(ctx context.Context, do, undo func(context.Context) error) error {
	if err := do(ctx); err != nil {
		return err
	}
	l.undo = append(l.undo, undo)
	return nil
}

// dropAtEnd schedules n units of kind from h to be dropped at loc when the
// ledger commits. All drops of one exchange must share location and source.
func (l *ledger) dropAtEnd(inv Inventories, at types.Location, from types.Holder, kind string, n int) error {
	if l.drop == nil {
		l.drop = &pendingDrop{inv: inv, at: at, from: from, items: types.Items{}}
	}
	if l.drop.at != at || l.drop.from != from {
		return fmt.Errorf("drop %d x %s from %s at %s: exchange already drops from %s at %s",
			n, kind, from, at, l.drop.from, l.drop.at)
	}
	l.drop.items[kind] += n
	return nil
}

// commit runs the pending drop, if any. On error nothing was dropped and the
// caller must roll back.
func (l *ledger) commit(ctx context.Context) error {
	d := l.drop
	if d == nil {
		return nil
	}
	if err := d.inv.Spawn(ctx, d.at, d.from, d.items); err != nil {
		return fmt.Errorf("drop %s at %s: %w", d.items, d.at, err)
	}
	l.drop = nil
	l.undo = nil
	return nil
}

// rollback compensates every applied step, newest first, and discards the
// pending drop.
func (l *ledger) rollback(ctx context.Context) {
	for i := len(l.undo) - 1; i >= 0; i-- {
		if err := l.undo[i](ctx); err != nil {
			l.log.Error("shop exchange rollback step failed", "step", i, "err", err)
		}
	}
	l.undo = nil
	l.drop = nil
}

// party is one side of an exchange. account is uuid.Nil when the side has
// no economy account (an unclaimed shop); holder is the inventory used for
// items and inventory-backed payments.
type party struct {
	account uuid.UUID
	holder  types.Holder
}

func actorParty(actor types.Actor) party {
	return party{account: actor.ID, holder: types.PlayerHolder(actor.ID)}
}

// medium settles prices either through economy accounts or, for
// inventory-backed kinds, by moving currency items.
type medium struct {
	env      *Env
	currency string // item kind; empty selects economy accounts
}

func newMedium(env *Env, k Kind) medium {
	m := medium{env: env}
	if k.inventoryBacked() {
		m.currency = env.CurrencyItem
	}
	return m
}

func (m medium) items() bool { return m.currency != "" }

// name is the display name of the currency for messages.
func (m medium) name() string {
	if m.items() {
		return m.currency
	}
	return m.env.currencyName()
}

// withPrice returns items plus amount of the currency item when the medium
// settles in items. Account media return items unchanged.
func (m medium) withPrice(items types.Items, amount int) types.Items {
	if !m.items() || amount <= 0 {
		return items
	}
	out := items.Clone()
	out[m.currency] += amount
	return out
}

// affords reports whether payer can cover amount. Payers without an
// account pay from nowhere (server funded) and always can.
func (m medium) affords(ctx context.Context, payer party, amount int) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	if m.items() {
		n, err := m.env.Inventories.Count(ctx, payer.holder, m.currency)
		if err != nil {
			return false, err
		}
		return n >= amount, nil
	}
	if payer.account == uuid.Nil {
		return true, nil
	}
	bal, err := m.env.Economy.Balance(ctx, payer.account)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// pay records the transfer of amount from one party to another in l.
func (m medium) pay(ctx context.Context, l *ledger, from, to party, amount int) error {
	if amount <= 0 {
		return nil
	}
	if m.items() {
		return moveItems(ctx, l, m.env, from.holder, to.holder, types.Items{m.currency: amount})
	}
	eco := m.env.Economy
	if from.account != uuid.Nil {
		err := l.apply(ctx,
			func(ctx context.Context) error { return eco.Withdraw(ctx, from.account, amount) },
			func(ctx context.Context) error { return eco.Deposit(ctx, from.account, amount) },
		)
		if err != nil {
			return fmt.Errorf("withdraw %d: %w", amount, err)
		}
	}
	if to.account != uuid.Nil {
		err := l.apply(ctx,
			func(ctx context.Context) error { return eco.Deposit(ctx, to.account, amount) },
			func(ctx context.Context) error { return eco.Withdraw(ctx, to.account, amount) },
		)
		if err != nil {
			return fmt.Errorf("deposit %d: %w", amount, err)
		}
	}
	return nil
}

// moveItems records moving every kind of items between two holders.
func moveItems(ctx context.Context, l *ledger, env *Env, from, to types.Holder, items types.Items) error {
	inv := env.Inventories
	for _, kind := range items.Kinds() {
		n := items[kind]
		err := l.apply(ctx,
			func(ctx context.Context) error { return inv.Move(ctx, from, to, kind, n) },
			func(ctx context.Context) error { return inv.Move(ctx, to, from, kind, n) },
		)
		if err != nil {
			return fmt.Errorf("move %d x %s from %s to %s: %w", n, kind, from, to, err)
		}
	}
	return nil
}

// deliver records moving items into a player's inventory. Kinds that do not
// fit are dropped into the world at spawn when the ledger commits.
func deliver(ctx context.Context, l *ledger, env *Env, from types.Holder, actor types.Actor, items types.Items, spawn types.Location) error {
	inv := env.Inventories
	to := types.PlayerHolder(actor.ID)
	for _, kind := range items.Kinds() {
		n := items[kind]
		err := l.apply(ctx,
			func(ctx context.Context) error { return inv.Move(ctx, from, to, kind, n) },
			func(ctx context.Context) error { return inv.Move(ctx, to, from, kind, n) },
		)
		if errors.Is(err, ErrInventoryFull) {
			err = l.dropAtEnd(inv, spawn, from, kind, n)
		}
		if err != nil {
			return fmt.Errorf("deliver %d x %s to %s: %w", n, kind, actor, err)
		}
	}
	return nil
}

// hasEnough reports whether have holds at least need of every kind with a
// positive quantity in need. Kinds missing from have count as zero.
func hasEnough(have, need types.Items) bool {
	for kind, n := range need {
		if n <= 0 {
			continue
		}
		if have[kind] < n {
			return false
		}
	}
	return true
}

// holds checks whether h currently holds need.
func holds(ctx context.Context, env *Env, h types.Holder, need types.Items) (bool, error) {
	have, err := env.Inventories.Contents(ctx, h)
	if err != nil {
		return false, err
	}
	return hasEnough(have, need), nil
}
