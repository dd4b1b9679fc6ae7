package shop

import "errors"

var (
	// ErrNotAShop is returned by [Builder.Build] when the anchor's label does
	// not name a shop kind. Callers treat it as a silent no-op: ordinary signs
	// take this path.
	ErrNotAShop = errors.New("shop: not a shop sign")

	// ErrNoShop is returned when no shop occupies the requested location.
	ErrNoShop = errors.New("shop: no shop at location")

	// ErrPermissionDenied is returned when the actor lacks a required permission
	// or does not own the shop it tries to change.
	ErrPermissionDenied = errors.New("shop: permission denied")

	// ErrInvalidConfig is returned when a sign, price or staged selection
	// cannot be turned into a shop.
	ErrInvalidConfig = errors.New("shop: invalid configuration")

	// ErrInsufficient is returned when either side of an exchange lacks
	// currency or items.
	ErrInsufficient = errors.New("shop: insufficient resources")

	// ErrOwnershipConflict is returned when a build would override a shop the
	// actor does not own.
	ErrOwnershipConflict = errors.New("shop: would override a shop you do not own")

	// ErrRegistryCorrupt is returned when a location is claimed by two shops.
	// It is the only fatal error of this package: a broken index must never be
	// trusted.
	ErrRegistryCorrupt = errors.New("shop: registry invariant violated")

	// ErrInventoryFull may be returned by [Inventories.Move] when the
	// destination has no room. Deliveries to players fall back to spawning the
	// items at the shop's anchor.
	ErrInventoryFull = errors.New("shop: inventory full")
)

// Error carries the human-readable reason an operation failed alongside the
// sentinel error classifying it.
type Error struct {
	Err    error
	Reason string
}

func (e *Error) Error() string { return e.Err.Error() + ": " + e.Reason }
func (e *Error) Unwrap() error { return e.Err }

// Reason extracts the user-facing reason from err, falling back to the
// error text.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return err.Error()
}
