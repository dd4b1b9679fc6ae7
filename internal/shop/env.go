package shop

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/internal/observe"
	"github.com/MrWong99/signshop/pkg/types"
)

// SignLines is the number of text lines on a shop sign.
const SignLines = 4

// Signs gives read access to sign text and write access to the status marker
// rendered on a sign's first line.
type Signs interface {
	// Lines returns the plain text lines of the sign at loc. ok is false when
	// there is no sign at loc.
	Lines(ctx context.Context, loc types.Location) (lines []string, ok bool)

	// SetMarker recolours line 0 of the sign at loc without changing its text.
	SetMarker(ctx context.Context, loc types.Location, m Marker) error
}

// Permissions answers capability checks for actors.
type Permissions interface {
	HasPermission(actor types.Actor, key string) bool
}

// Economy moves currency in and out of player accounts. Every call either
// applies fully or fails without effect.
type Economy interface {
	Balance(ctx context.Context, account uuid.UUID) (int, error)
	Withdraw(ctx context.Context, account uuid.UUID, amount int) error
	Deposit(ctx context.Context, account uuid.UUID, amount int) error
}

// Inventories queries and moves item stacks between inventories.
type Inventories interface {
	// Count returns the quantity of kind held by h. Unknown kinds count as zero.
	Count(ctx context.Context, h types.Holder, kind string) (int, error)

	// Contents returns everything held by h.
	Contents(ctx context.Context, h types.Holder) (types.Items, error)

	// Move transfers n units of kind from one holder to another. It returns
	// [ErrInventoryFull] without moving anything when the destination lacks room.
	Move(ctx context.Context, from, to types.Holder, kind string, n int) error

	// Spawn takes items from h and drops them into the world at loc. It either
	// drops every kind or, on error, nothing.
	Spawn(ctx context.Context, at types.Location, from types.Holder, items types.Items) error
}

// World answers questions about blocks that shops attach to.
type World interface {
	IsContainer(ctx context.Context, loc types.Location) bool
	IsDevice(ctx context.Context, loc types.Location) bool
	Powered(ctx context.Context, loc types.Location) (bool, error)
	SetPowered(ctx context.Context, loc types.Location, on bool) error
}

// Selections is the per-player stack of staged locations (containers,
// devices) consumed when a shop sign is built.
type Selections interface {
	Push(player uuid.UUID, loc types.Location)
	// Staged returns the stack bottom first; the last element is the top.
	Staged(player uuid.UUID) []types.Location
	Clear(player uuid.UUID)
}

// Messenger delivers chat feedback to an actor.
type Messenger interface {
	Notify(actor types.Actor, text string)
}

// Policy holds the tunable shop rules.
type Policy struct {
	// ClaimUnownedOnTrigger transfers an unclaimed shop to the first non-admin
	// actor that completes an exchange with it.
	ClaimUnownedOnTrigger bool

	// AdminBuildsUnowned leaves shops built by admins unclaimed.
	AdminBuildsUnowned bool
}

// Env bundles the collaborators a shop talks to. All fields except Logger
// are required. An Env is owned by a [Service]; shops keep a pointer to it.
type Env struct {
	Signs       Signs
	Permissions Permissions
	Economy     Economy
	Inventories Inventories
	World       World
	Selections  Selections
	Messenger   Messenger

	// PermissionPrefix namespaces permission keys ("signshop" yields
	// "signshop.admin" and "signshop.create.buy").
	PermissionPrefix string

	// CurrencyName is the plural display name of the economy currency.
	CurrencyName string

	// CurrencyItem is the item kind used as money by inventory-backed shops.
	CurrencyItem string

	Policy Policy

	Logger *slog.Logger

	registry *Registry
}

// AdminPermission returns the key that grants owner rights over every shop.
func (e *Env) AdminPermission() string {
	return e.prefix() + ".admin"
}

// CreatePermission returns the key required to build a shop of kind k.
func (e *Env) CreatePermission(k Kind) string {
	return e.prefix() + ".create." + string(k)
}

func (e *Env) prefix() string {
	if e.PermissionPrefix == "" {
		return "signshop"
	}
	return e.PermissionPrefix
}

func (e *Env) isAdmin(actor types.Actor) bool {
	return e.Permissions.HasPermission(actor, e.AdminPermission())
}

// logger returns the configured logger enriched with the trace of ctx.
func (e *Env) logger(ctx context.Context) *slog.Logger {
	return observe.LoggerFrom(ctx, e.Logger)
}

func (e *Env) currencyName() string {
	if e.CurrencyName == "" {
		return "coins"
	}
	return e.CurrencyName
}
