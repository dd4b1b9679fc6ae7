package shop_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/signshop/internal/sandbox"
	"github.com/MrWong99/signshop/internal/shop"
)

func TestDevice_States(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label   string
		initial bool
		want    []bool // lever state after each trigger
	}{
		{"[device]", false, []bool{true, false, true}},
		{"[deviceon]", false, []bool{true, true}},
		{"[deviceoff]", true, []bool{false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, shop.Policy{})
			f.world.PlaceDevice(lever1, tt.initial)
			f.mustBuild(owner, sign1, lines(tt.label, "2"), lever1)

			for i, want := range tt.want {
				if err := f.svc.Trigger(f.ctx, buyer, sign1); err != nil {
					t.Fatalf("Trigger %d: %v", i, err)
				}
				on, err := f.world.Powered(f.ctx, lever1)
				if err != nil {
					t.Fatalf("Powered: %v", err)
				}
				if on != want {
					t.Errorf("after trigger %d lever = %v, want %v", i, on, want)
				}
			}
			if got, want := f.balance(buyer), 15-2*len(tt.want); got != want {
				t.Errorf("buyer balance = %d, want %d", got, want)
			}
			// The fee is withdrawn, not paid to the owner.
			if got := f.balance(owner); got != 0 {
				t.Errorf("owner balance = %d, want 0", got)
			}
		})
	}
}

func TestDevice_InsufficientFunds(t *testing.T) {
	t.Parallel()
	f := newFixture(t, shop.Policy{})
	f.world.PlaceDevice(lever1, false)
	f.mustBuild(owner, sign1, lines("[device]", "20"), lever1)

	if err := f.svc.Trigger(f.ctx, buyer, sign1); !errors.Is(err, shop.ErrInsufficient) {
		t.Fatalf("Trigger error = %v, want ErrInsufficient", err)
	}
	f.wantMessage(buyer, "You don't have enough money!")
	if on, _ := f.world.Powered(f.ctx, lever1); on {
		t.Error("lever switched despite failed payment")
	}
	f.wantMarker(sign1, shop.MarkerFail)
}

func TestDevice_RefundsWhenSwitchFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t, shop.Policy{})
	f.world.PlaceDevice(lever1, false)
	f.mustBuild(owner, sign1, lines("[deviceon]", "5"), lever1)
	f.world.FailNext(sandbox.OpSetPowered, errors.New("redstone jammed"))

	if err := f.svc.Trigger(f.ctx, buyer, sign1); err == nil {
		t.Fatal("Trigger succeeded despite failed switch")
	}
	if got := f.balance(buyer); got != 15 {
		t.Errorf("buyer balance = %d, want 15", got)
	}
}

func TestDevice_FreeIsAlwaysAffordable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, shop.Policy{})
	f.world.PlaceDevice(lever1, false)
	f.mustBuild(owner, sign1, lines("[deviceon]", "0"), lever1)
	f.world.AddPlayer(buyer.ID, buyer.Name, 0, 0, nil)

	if err := f.svc.Trigger(f.ctx, buyer, sign1); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	f.wantMessage(buyer, "Device activated for 0 coins.")
}

func TestDevice_RemovedLeverFailsUpdate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, shop.Policy{})
	f.world.PlaceDevice(lever1, false)
	f.mustBuild(owner, sign1, lines("[device]", "1"), lever1)
	f.world.Break(lever1)

	if err := f.svc.Inspect(f.ctx, buyer, sign1); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	f.wantMessage(buyer, "Toggle for 1 coins?")
	f.wantMarker(sign1, shop.MarkerFail)
}
