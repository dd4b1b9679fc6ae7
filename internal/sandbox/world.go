// Package sandbox provides an in-memory host world for signshop.
//
// A [World] implements every collaborator interface of package shop: signs,
// permissions, an economy, player and container inventories, devices and a
// per-player chat log. It backs the standalone server (where a game
// integration would otherwise sit) and the shop tests.
//
// World is safe for concurrent use.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

// Compile-time assertions that World satisfies the shop collaborators.
var (
	_ shop.Signs       = (*World)(nil)
	_ shop.Permissions = (*World)(nil)
	_ shop.Economy     = (*World)(nil)
	_ shop.Inventories = (*World)(nil)
	_ shop.World       = (*World)(nil)
	_ shop.Messenger   = (*World)(nil)
)

var (
	// ErrNoBlock is returned when an operation targets a location holding no
	// block of the expected type.
	ErrNoBlock = errors.New("sandbox: no such block")

	// ErrInvalidAmount is returned for negative or zero transfers.
	ErrInvalidAmount = errors.New("sandbox: amount must be positive")
)

// Op names a [World] operation that can be made to fail with [World.FailNext].
type Op string

const (
	OpWithdraw   Op = "withdraw"
	OpDeposit    Op = "deposit"
	OpMove       Op = "move"
	OpSpawn      Op = "spawn"
	OpSetPowered Op = "set_powered"
	OpSetMarker  Op = "set_marker"
)

type sign struct {
	lines  []string
	marker shop.Marker
}

type container struct {
	items    types.Items
	capacity int
}

type player struct {
	name     string
	balance  int
	items    types.Items
	capacity int
	perms    []string
	messages []string
}

// World is an in-memory host world. The zero value is not usable; call [New].
type World struct {
	mu         sync.Mutex
	signs      map[types.Location]*sign
	containers map[types.Location]*container
	devices    map[types.Location]bool
	players    map[uuid.UUID]*player
	dropped    map[types.Location]types.Items
	faults     map[Op][]error
	log        *slog.Logger
}

// Option configures a [World].
type Option func(*World)

// WithLogger sets the logger receiving chat messages at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) { w.log = l }
}

// New returns an empty world.
func New(opts ...Option) *World {
	w := &World{
		signs:      make(map[types.Location]*sign),
		containers: make(map[types.Location]*container),
		devices:    make(map[types.Location]bool),
		players:    make(map[uuid.UUID]*player),
		dropped:    make(map[types.Location]types.Items),
		faults:     make(map[Op][]error),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ─── World editing ───────────────────────────────────────────────────────────

// AddPlayer registers a player, replacing any previous state for id.
// capacity limits the total units the player can carry; 0 is unlimited.
func (w *World) AddPlayer(id uuid.UUID, name string, balance, capacity int, items types.Items, perms ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players[id] = &player{
		name:     name,
		balance:  balance,
		items:    items.Clone(),
		capacity: capacity,
		perms:    slices.Clone(perms),
	}
}

// Grant adds permission keys to a player. A key ending in ".*" grants every
// key below it, and "*" grants everything.
func (w *World) Grant(id uuid.UUID, perms ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.player(id)
	p.perms = append(p.perms, perms...)
}

// PlaceSign puts a sign with the given text at loc, replacing any sign there.
func (w *World) PlaceSign(loc types.Location, lines ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signs[loc] = &sign{lines: slices.Clone(lines)}
}

// PlaceContainer puts a container holding items at loc. capacity limits the
// total units it holds; 0 is unlimited.
func (w *World) PlaceContainer(loc types.Location, capacity int, items types.Items) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.containers[loc] = &container{items: items.Clone(), capacity: capacity}
}

// PlaceDevice puts a lever at loc.
func (w *World) PlaceDevice(loc types.Location, powered bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.devices[loc] = powered
}

// Break removes whatever block is at loc. Items in a broken container are
// dropped at loc.
func (w *World) Break(loc types.Location) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.signs, loc)
	delete(w.devices, loc)
	if c, ok := w.containers[loc]; ok {
		w.drop(loc, c.items)
		delete(w.containers, loc)
	}
}

// FailNext makes the next call of op return err instead of taking effect.
// Calls queue up: FailNext twice fails the next two calls.
func (w *World) FailNext(op Op, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.faults[op] = append(w.faults[op], err)
}

// ─── World inspection ────────────────────────────────────────────────────────

// Marker returns the status marker of the sign at loc.
func (w *World) Marker(loc types.Location) (shop.Marker, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.signs[loc]
	if !ok {
		return shop.MarkerReset, false
	}
	return s.marker, true
}

// Inventory returns a copy of a player's items.
func (w *World) Inventory(id uuid.UUID) types.Items {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.player(id).items.Clone()
}

// ContainerItems returns a copy of the items in the container at loc.
func (w *World) ContainerItems(loc types.Location) types.Items {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.containers[loc]
	if !ok {
		return nil
	}
	return c.items.Clone()
}

// Dropped returns a copy of the items lying in the world at loc.
func (w *World) Dropped(loc types.Location) types.Items {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped[loc].Clone()
}

// Messages returns a copy of every chat message sent to a player.
func (w *World) Messages(id uuid.UUID) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.player(id).messages)
}

// Drain returns and forgets the chat messages sent to a player.
func (w *World) Drain(id uuid.UUID) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.player(id)
	out := p.messages
	p.messages = nil
	return out
}

// ─── shop.Signs ──────────────────────────────────────────────────────────────

// Lines implements [shop.Signs].
func (w *World) Lines(_ context.Context, loc types.Location) ([]string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.signs[loc]
	if !ok {
		return nil, false
	}
	return slices.Clone(s.lines), true
}

// SetMarker implements [shop.Signs].
func (w *World) SetMarker(_ context.Context, loc types.Location, m shop.Marker) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fault(OpSetMarker); err != nil {
		return err
	}
	s, ok := w.signs[loc]
	if !ok {
		return fmt.Errorf("sandbox: set marker at %s: %w", loc, ErrNoBlock)
	}
	s.marker = m
	return nil
}

// ─── shop.Permissions ────────────────────────────────────────────────────────

// HasPermission implements [shop.Permissions].
func (w *World) HasPermission(actor types.Actor, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[actor.ID]
	if !ok {
		return false
	}
	for _, g := range p.perms {
		if granted(g, key) {
			return true
		}
	}
	return false
}

func granted(grant, key string) bool {
	if grant == "*" || grant == key {
		return true
	}
	prefix, ok := strings.CutSuffix(grant, ".*")
	return ok && strings.HasPrefix(key, prefix+".")
}

// ─── shop.Economy ────────────────────────────────────────────────────────────

// Balance implements [shop.Economy].
func (w *World) Balance(_ context.Context, account uuid.UUID) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.player(account).balance, nil
}

// Withdraw implements [shop.Economy].
func (w *World) Withdraw(_ context.Context, account uuid.UUID, amount int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fault(OpWithdraw); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p := w.player(account)
	if p.balance < amount {
		return fmt.Errorf("sandbox: withdraw %d from %s: %w", amount, account, shop.ErrInsufficient)
	}
	p.balance -= amount
	return nil
}

// Deposit implements [shop.Economy].
func (w *World) Deposit(_ context.Context, account uuid.UUID, amount int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fault(OpDeposit); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	w.player(account).balance += amount
	return nil
}

// ─── shop.Inventories ────────────────────────────────────────────────────────

// Count implements [shop.Inventories].
func (w *World) Count(_ context.Context, h types.Holder, kind string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	items, _, err := w.holder(h)
	if err != nil {
		return 0, err
	}
	return max((*items)[kind], 0), nil
}

// Contents implements [shop.Inventories].
func (w *World) Contents(_ context.Context, h types.Holder) (types.Items, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	items, _, err := w.holder(h)
	if err != nil {
		return nil, err
	}
	return items.Clone(), nil
}

// Move implements [shop.Inventories]. It returns [shop.ErrInventoryFull] when
// the destination's capacity would be exceeded.
func (w *World) Move(_ context.Context, from, to types.Holder, kind string, n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fault(OpMove); err != nil {
		return err
	}
	if n <= 0 {
		return ErrInvalidAmount
	}
	src, _, err := w.holder(from)
	if err != nil {
		return err
	}
	dst, capacity, err := w.holder(to)
	if err != nil {
		return err
	}
	if (*src)[kind] < n {
		return fmt.Errorf("sandbox: move %d x %s from %s: %w", n, kind, from, shop.ErrInsufficient)
	}
	if capacity > 0 && total(*dst)+n > capacity {
		return fmt.Errorf("sandbox: move %d x %s to %s: %w", n, kind, to, shop.ErrInventoryFull)
	}
	take(src, kind, n)
	(*dst)[kind] += n
	return nil
}

// Spawn implements [shop.Inventories].
func (w *World) Spawn(_ context.Context, at types.Location, from types.Holder, items types.Items) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fault(OpSpawn); err != nil {
		return err
	}
	if items.Empty() {
		return ErrInvalidAmount
	}
	src, _, err := w.holder(from)
	if err != nil {
		return err
	}
	for kind, n := range items {
		if n <= 0 {
			return ErrInvalidAmount
		}
		if (*src)[kind] < n {
			return fmt.Errorf("sandbox: spawn %d x %s from %s: %w", n, kind, from, shop.ErrInsufficient)
		}
	}
	for kind, n := range items {
		take(src, kind, n)
	}
	w.drop(at, items.Clone())
	return nil
}

// ─── shop.World ──────────────────────────────────────────────────────────────

// IsContainer implements [shop.World].
func (w *World) IsContainer(_ context.Context, loc types.Location) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.containers[loc]
	return ok
}

// IsDevice implements [shop.World].
func (w *World) IsDevice(_ context.Context, loc types.Location) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.devices[loc]
	return ok
}

// Powered implements [shop.World].
func (w *World) Powered(_ context.Context, loc types.Location) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	on, ok := w.devices[loc]
	if !ok {
		return false, fmt.Errorf("sandbox: device at %s: %w", loc, ErrNoBlock)
	}
	return on, nil
}

// SetPowered implements [shop.World].
func (w *World) SetPowered(_ context.Context, loc types.Location, on bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fault(OpSetPowered); err != nil {
		return err
	}
	if _, ok := w.devices[loc]; !ok {
		return fmt.Errorf("sandbox: device at %s: %w", loc, ErrNoBlock)
	}
	w.devices[loc] = on
	return nil
}

// ─── shop.Messenger ──────────────────────────────────────────────────────────

// Notify implements [shop.Messenger].
func (w *World) Notify(actor types.Actor, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.player(actor.ID)
	p.messages = append(p.messages, text)
	w.log.Debug("chat", "player", actor, "text", text)
}

// ─── internals (caller holds mu) ─────────────────────────────────────────────

// player returns the state for id, creating an empty player on first use.
func (w *World) player(id uuid.UUID) *player {
	p, ok := w.players[id]
	if !ok {
		p = &player{items: types.Items{}}
		w.players[id] = p
	}
	if p.items == nil {
		p.items = types.Items{}
	}
	return p
}

// holder resolves h to its item map and capacity.
func (w *World) holder(h types.Holder) (*types.Items, int, error) {
	if !h.IsContainer() {
		p := w.player(h.Player)
		return &p.items, p.capacity, nil
	}
	c, ok := w.containers[h.Container]
	if !ok {
		return nil, 0, fmt.Errorf("sandbox: container at %s: %w", h.Container, ErrNoBlock)
	}
	if c.items == nil {
		c.items = types.Items{}
	}
	return &c.items, c.capacity, nil
}

func (w *World) drop(at types.Location, items types.Items) {
	d := w.dropped[at]
	if d == nil {
		d = types.Items{}
		w.dropped[at] = d
	}
	for kind, n := range items {
		if n > 0 {
			d[kind] += n
		}
	}
}

// fault pops the next injected error for op.
func (w *World) fault(op Op) error {
	q := w.faults[op]
	if len(q) == 0 {
		return nil
	}
	w.faults[op] = q[1:]
	return q[0]
}

func take(items *types.Items, kind string, n int) {
	(*items)[kind] -= n
	if (*items)[kind] <= 0 {
		delete(*items, kind)
	}
}

func total(items types.Items) int {
	var sum int
	for _, n := range items {
		if n > 0 {
			sum += n
		}
	}
	return sum
}
