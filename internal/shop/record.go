package shop

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/pkg/types"
)

// Record is the persisted form of a shop. It carries everything needed to
// rebuild the shop's behaviour and its occupied locations on reload.
type Record struct {
	Kind   Kind           `yaml:"kind" json:"kind"`
	Owner  *uuid.UUID     `yaml:"owner,omitempty" json:"owner,omitempty"`
	Anchor types.Location `yaml:"anchor" json:"anchor"`
	Price  int            `yaml:"price" json:"price"`

	// Stock is the container of item shops.
	Stock *types.Location `yaml:"stock,omitempty" json:"stock,omitempty"`

	// Device is the switched block of device shops.
	Device *types.Location `yaml:"device,omitempty" json:"device,omitempty"`

	// Items is the template handed out (buy, trade) or taken in (sell).
	Items types.Items `yaml:"items,omitempty" json:"items,omitempty"`

	// Give is what the actor pays in a trade.
	Give types.Items `yaml:"give,omitempty" json:"give,omitempty"`
}

// Validate checks a [Record] for the fields its kind requires.
func (r Record) Validate() error {
	var errs []error
	if !r.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("kind %q is not a recognised shop kind", r.Kind))
	}
	if r.Price < 0 {
		errs = append(errs, fmt.Errorf("price %d must not be negative", r.Price))
	}
	switch r.Kind {
	case KindBuy, KindSell, KindIBuy, KindISell, KindTrade, KindITrade:
		if r.Stock == nil {
			errs = append(errs, errors.New("stock location is required"))
		}
		if r.Items.Empty() {
			errs = append(errs, errors.New("items must not be empty"))
		}
		if (r.Kind == KindTrade || r.Kind == KindITrade) && r.Give.Empty() {
			errs = append(errs, errors.New("give must not be empty"))
		}
	case KindDevice, KindDeviceOn, KindDeviceOff:
		if r.Device == nil {
			errs = append(errs, errors.New("device location is required"))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// FromRecord rebuilds a shop from its persisted form.
func FromRecord(env *Env, r Record) (Shop, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("shop: record at %s: %w", r.Anchor, err)
	}
	b := base{env: env, kind: r.Kind, anchor: r.Anchor, price: r.Price}
	if r.Owner != nil {
		b.owner = *r.Owner
	}
	switch r.Kind {
	case KindTrade, KindITrade:
		return &tradeShop{base: b, stock: *r.Stock, give: r.Give.Clone(), take: r.Items.Clone(), medium: newMedium(env, r.Kind)}, nil
	case KindDevice, KindDeviceOn, KindDeviceOff:
		return &deviceShop{base: b, device: *r.Device, medium: newMedium(env, r.Kind)}, nil
	default:
		return &exchangeShop{base: b, stock: *r.Stock, items: r.Items.Clone(), medium: newMedium(env, r.Kind)}, nil
	}
}
