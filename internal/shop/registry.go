package shop

import (
	"fmt"
	"slices"

	"github.com/MrWong99/signshop/pkg/types"
)

// Registry indexes every location occupied by a shop. Many locations may
// point at the same shop; a location never points at two.
//
// The registry is a pure index: Add does not re-check that the locations are
// free. Conflict policy lives in [Builder]. Registry is not safe for
// concurrent use; [Service] guards it.
type Registry struct {
	byLocation map[types.Location]Shop
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{byLocation: make(map[types.Location]Shop)}
}

// LoadRegistry builds a registry holding shops. It returns
// [ErrRegistryCorrupt] if two shops claim the same location.
func LoadRegistry(shops []Shop) (*Registry, error) {
	r := NewRegistry()
	for _, s := range shops {
		for _, loc := range s.Locations() {
			if other, ok := r.byLocation[loc]; ok && other != s {
				return nil, fmt.Errorf("%w: %s claimed by %s shop at %s and %s shop at %s",
					ErrRegistryCorrupt, loc, other.Kind(), other.Anchor(), s.Kind(), s.Anchor())
			}
		}
		r.Add(s)
	}
	return r, nil
}

// Get returns the shop occupying loc.
func (r *Registry) Get(loc types.Location) (Shop, bool) {
	s, ok := r.byLocation[loc]
	return s, ok
}

// Add maps every location of s to s.
//
// Precondition: none of those locations maps to a different shop.
func (r *Registry) Add(s Shop) {
	for _, loc := range s.Locations() {
		r.byLocation[loc] = s
	}
}

// Remove erases the locations of s. Entries that already point at another
// shop are left alone, and removing an absent shop is a no-op.
func (r *Registry) Remove(s Shop) {
	for _, loc := range s.Locations() {
		if cur, ok := r.byLocation[loc]; ok && cur == s {
			delete(r.byLocation, loc)
		}
	}
}

// Len returns the number of indexed locations.
func (r *Registry) Len() int {
	return len(r.byLocation)
}

// Shops returns every distinct shop ordered by anchor.
func (r *Registry) Shops() []Shop {
	seen := make(map[Shop]struct{}, len(r.byLocation))
	out := make([]Shop, 0, len(r.byLocation))
	for _, s := range r.byLocation {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Shop) int {
		return types.CompareLocations(a.Anchor(), b.Anchor())
	})
	return out
}
