package shop_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/signshop/internal/sandbox"
	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/pkg/types"
)

// tradeShop builds a trade at sign1: the buyer hands over 2 emerald and
// receives 1 diamond from chest1. chest2 only serves as the price template.
func tradeShop(t *testing.T, label, fee string) *fixture {
	t.Helper()
	f := newFixture(t, shop.Policy{})
	f.world.PlaceContainer(chest2, 0, types.Items{"emerald": 2})
	f.world.PlaceContainer(chest1, 0, types.Items{"diamond": 1})
	r := f.mustBuild(owner, sign1, lines(label, fee), chest2, chest1)
	if r.Stock == nil || *r.Stock != chest1 {
		t.Fatalf("trade stock = %v, want %s", r.Stock, chest1)
	}
	f.world.PlaceContainer(chest1, 0, types.Items{"diamond": 2})
	return f
}

func TestTrade(t *testing.T) {
	t.Parallel()
	f := tradeShop(t, "[trade]", "0")
	f.world.AddPlayer(buyer.ID, buyer.Name, 15, 0, types.Items{"emerald": 3})

	if _, ok := f.svc.Lookup(chest2); ok {
		t.Error("price template container should not be occupied")
	}
	if err := f.svc.Trigger(f.ctx, buyer, sign1); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	inv := f.world.Inventory(buyer.ID)
	if inv["emerald"] != 1 || inv["diamond"] != 1 {
		t.Errorf("buyer inventory = %v, want 1 emerald and 1 diamond", inv)
	}
	stock := f.world.ContainerItems(chest1)
	if stock["emerald"] != 2 || stock["diamond"] != 1 {
		t.Errorf("stock = %v, want 2 emerald and 1 diamond", stock)
	}
	if got := f.balance(buyer); got != 15 {
		t.Errorf("buyer balance = %d, want 15", got)
	}
	f.wantMessage(buyer, "You traded 2 x emerald for 1 x diamond.")

	// One emerald left: not enough for a second trade.
	if err := f.svc.Trigger(f.ctx, buyer, sign1); !errors.Is(err, shop.ErrInsufficient) {
		t.Fatalf("second Trigger error = %v, want ErrInsufficient", err)
	}
	f.wantMarker(sign1, shop.MarkerFail)
}

func TestTrade_WithFee(t *testing.T) {
	t.Parallel()
	f := tradeShop(t, "[trade]", "4")
	f.world.AddPlayer(buyer.ID, buyer.Name, 3, 0, types.Items{"emerald": 2})

	if err := f.svc.Trigger(f.ctx, buyer, sign1); !errors.Is(err, shop.ErrInsufficient) {
		t.Fatalf("Trigger error = %v, want ErrInsufficient", err)
	}
	f.wantMessage(buyer, "You don't have enough coins.")

	if err := f.world.Deposit(f.ctx, buyer.ID, 1); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := f.svc.Trigger(f.ctx, buyer, sign1); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if got := f.balance(buyer); got != 0 {
		t.Errorf("buyer balance = %d, want 0", got)
	}
	if got := f.balance(owner); got != 4 {
		t.Errorf("owner balance = %d, want 4", got)
	}
}

func TestTrade_OutOfStockKeepsItems(t *testing.T) {
	t.Parallel()
	f := tradeShop(t, "[trade]", "0")
	f.world.PlaceContainer(chest1, 0, nil)
	f.world.AddPlayer(buyer.ID, buyer.Name, 0, 0, types.Items{"emerald": 2})

	if err := f.svc.Trigger(f.ctx, buyer, sign1); !errors.Is(err, shop.ErrInsufficient) {
		t.Fatalf("Trigger error = %v, want ErrInsufficient", err)
	}
	f.wantMessage(buyer, "This shop doesn't have enough stock.")
	if got := f.world.Inventory(buyer.ID)["emerald"]; got != 2 {
		t.Errorf("buyer emerald = %d, want 2", got)
	}
}

func TestITrade_FeeInCurrencyItems(t *testing.T) {
	t.Parallel()
	f := tradeShop(t, "[itrade]", "1")
	f.world.AddPlayer(buyer.ID, buyer.Name, 0, 0, types.Items{"emerald": 2, "gold": 1})

	// The second move (emerald) fails after the fee was paid.
	f.world.FailNext(sandbox.OpMove, nil)
	f.world.FailNext(sandbox.OpMove, errors.New("lag"))
	if err := f.svc.Trigger(f.ctx, buyer, sign1); err == nil {
		t.Fatal("Trigger succeeded despite failed move")
	}
	inv := f.world.Inventory(buyer.ID)
	if inv["gold"] != 1 || inv["emerald"] != 2 {
		t.Errorf("buyer inventory after rollback = %v, want 1 gold and 2 emerald", inv)
	}

	if err := f.svc.Trigger(f.ctx, buyer, sign1); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	stock := f.world.ContainerItems(chest1)
	if stock["gold"] != 1 || stock["emerald"] != 2 || stock["diamond"] != 1 {
		t.Errorf("stock = %v, want 1 gold, 2 emerald and 1 diamond", stock)
	}
}

func TestITrade_FeeAndGiveShareCurrency(t *testing.T) {
	t.Parallel()
	f := newFixture(t, shop.Policy{})
	f.world.PlaceContainer(chest2, 0, types.Items{"gold": 2})
	f.world.PlaceContainer(chest1, 0, types.Items{"diamond": 1})
	f.mustBuild(owner, sign1, lines("[itrade]", "3"), chest2, chest1)
	f.world.AddPlayer(buyer.ID, buyer.Name, 0, 0, types.Items{"gold": 3})

	if err := f.svc.Trigger(f.ctx, buyer, sign1); !errors.Is(err, shop.ErrInsufficient) {
		t.Fatalf("Trigger error = %v, want ErrInsufficient", err)
	}
	f.wantMessage(buyer, "You don't have enough gold.")
	f.wantMarker(sign1, shop.MarkerFail)
	if got := f.world.Inventory(buyer.ID)["gold"]; got != 3 {
		t.Errorf("buyer gold = %d, want 3", got)
	}

	f.world.AddPlayer(buyer.ID, buyer.Name, 0, 0, types.Items{"gold": 5})
	if err := f.svc.Trigger(f.ctx, buyer, sign1); err != nil {
		t.Fatalf("Trigger with enough gold: %v", err)
	}
	inv := f.world.Inventory(buyer.ID)
	if inv["gold"] != 0 || inv["diamond"] != 1 {
		t.Errorf("buyer inventory = %v, want 0 gold and 1 diamond", inv)
	}
	if got := f.world.ContainerItems(chest1)["gold"]; got != 5 {
		t.Errorf("stock gold = %d, want 5", got)
	}
}
