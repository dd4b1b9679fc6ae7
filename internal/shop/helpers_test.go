package shop_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/internal/sandbox"
	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

var (
	owner  = types.Actor{ID: uuid.MustParse("11111111-1111-4111-8111-111111111111"), Name: "owner"}
	buyer  = types.Actor{ID: uuid.MustParse("22222222-2222-4222-8222-222222222222"), Name: "buyer"}
	rival  = types.Actor{ID: uuid.MustParse("33333333-3333-4333-8333-333333333333"), Name: "rival"}
	admin  = types.Actor{ID: uuid.MustParse("44444444-4444-4444-8444-444444444444"), Name: "admin"}
	nobody = types.Actor{ID: uuid.MustParse("55555555-5555-4555-8555-555555555555"), Name: "nobody"}
)

func at(x int) types.Location {
	return types.Location{World: "w", X: x, Y: 64}
}

var (
	sign1  = at(0)
	sign2  = at(1)
	chest1 = at(10)
	chest2 = at(11)
	lever1 = at(20)
	lever2 = at(21)
)

// fixture is a sandbox world with a service on top and a few players:
// owner and rival may build, buyer may only trade, admin holds the admin
// permission.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	world *sandbox.World
	env   *shop.Env
	svc   *shop.Service
}

func newFixture(t *testing.T, policy shop.Policy) *fixture {
	t.Helper()
	w := sandbox.New()
	w.AddPlayer(owner.ID, owner.Name, 0, 0, nil, "signshop.create.*")
	w.AddPlayer(rival.ID, rival.Name, 0, 0, nil, "signshop.create.*")
	w.AddPlayer(buyer.ID, buyer.Name, 15, 0, nil)
	w.AddPlayer(admin.ID, admin.Name, 0, 0, nil, "signshop.admin", "signshop.create.*")

	env := &shop.Env{
		Signs:        w,
		Permissions:  w,
		Economy:      w,
		Inventories:  w,
		World:        w,
		Messenger:    w,
		CurrencyName: "coins",
		CurrencyItem: "gold",
		Policy:       policy,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return &fixture{t: t, ctx: context.Background(), world: w, env: env, svc: shop.NewService(env)}
}

// build stages locs for actor, writes the sign and builds it.
func (f *fixture) build(actor types.Actor, anchor types.Location, lines []string, locs ...types.Location) (shop.Record, error) {
	f.t.Helper()
	f.world.PlaceSign(anchor, lines...)
	for _, loc := range locs {
		if err := f.svc.Stage(f.ctx, actor, loc); err != nil {
			f.t.Fatalf("Stage(%s): %v", loc, err)
		}
	}
	return f.svc.Build(f.ctx, actor, anchor)
}

// mustBuild is build that fails the test on error.
func (f *fixture) mustBuild(actor types.Actor, anchor types.Location, lines []string, locs ...types.Location) shop.Record {
	f.t.Helper()
	r, err := f.build(actor, anchor, lines, locs...)
	if err != nil {
		f.t.Fatalf("Build(%s): %v", anchor, err)
	}
	return r
}

func (f *fixture) balance(a types.Actor) int {
	f.t.Helper()
	n, err := f.world.Balance(f.ctx, a.ID)
	if err != nil {
		f.t.Fatalf("Balance: %v", err)
	}
	return n
}

func (f *fixture) wantMarker(loc types.Location, want shop.Marker) {
	f.t.Helper()
	got, ok := f.world.Marker(loc)
	if !ok {
		f.t.Fatalf("no sign at %s", loc)
	}
	if got != want {
		f.t.Errorf("marker at %s = %s, want %s", loc, got, want)
	}
}

// wantMessage checks that some message sent to a contains substr.
func (f *fixture) wantMessage(a types.Actor, substr string) {
	f.t.Helper()
	msgs := f.world.Messages(a.ID)
	if !slices.ContainsFunc(msgs, func(m string) bool { return strings.Contains(m, substr) }) {
		f.t.Errorf("messages to %s = %q, want one containing %q", a, msgs, substr)
	}
}

// anchorAt returns the anchor of the shop at loc, failing if there is none.
func (f *fixture) anchorAt(loc types.Location) types.Location {
	f.t.Helper()
	r, ok := f.svc.Lookup(loc)
	if !ok {
		f.t.Fatalf("no shop at %s", loc)
	}
	return r.Anchor
}

func lines(label, price string) []string {
	return []string{label, "", "", price}
}
