// Package types defines the shared value types used across all signshop packages.
//
// These types form the lingua franca between the shop core, the host world
// adapters, persistence and the HTTP API. Each package defines its own domain
// types; only cross-cutting data structures live here.
package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Location identifies a single block placement in the world. It is comparable
// and used as a map key; the shop core never interprets its coordinates.
type Location struct {
	World string `yaml:"world" json:"world"`
	X     int    `yaml:"x" json:"x"`
	Y     int    `yaml:"y" json:"y"`
	Z     int    `yaml:"z" json:"z"`
}

// String renders the location as world(x,y,z).
func (l Location) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", l.World, l.X, l.Y, l.Z)
}

// Less orders locations by world, then x, y and z.
func (l Location) Less(o Location) bool {
	return CompareLocations(l, o) < 0
}

// CompareLocations is a three-way comparison suitable for [slices.SortFunc].
func CompareLocations(a, b Location) int {
	if c := strings.Compare(a.World, b.World); c != 0 {
		return c
	}
	switch {
	case a.X != b.X:
		return cmpInt(a.X, b.X)
	case a.Y != b.Y:
		return cmpInt(a.Y, b.Y)
	default:
		return cmpInt(a.Z, b.Z)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Actor is the player performing an interaction.
type Actor struct {
	// ID is the player's stable unique identity.
	ID uuid.UUID `yaml:"id" json:"id"`

	// Name is the display name used in messages and logs.
	Name string `yaml:"name" json:"name"`
}

// String returns the actor's name, falling back to the ID.
func (a Actor) String() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID.String()
}

// Holder identifies an inventory: either a player's own inventory or the
// container placed at a location. Exactly one of the two fields is set.
type Holder struct {
	Player    uuid.UUID
	Container Location
	container bool
}

// PlayerHolder returns the [Holder] for the inventory of player id.
func PlayerHolder(id uuid.UUID) Holder {
	return Holder{Player: id}
}

// ContainerHolder returns the [Holder] for the container at loc.
func ContainerHolder(loc Location) Holder {
	return Holder{Container: loc, container: true}
}

// IsContainer reports whether h refers to a placed container.
func (h Holder) IsContainer() bool {
	return h.container
}

// String renders the holder for logs.
func (h Holder) String() string {
	if h.container {
		return "container@" + h.Container.String()
	}
	return "player:" + h.Player.String()
}

// Items maps a resource kind (e.g. "minecraft:stone") to a quantity.
type Items map[string]int

// Clone returns an independent copy of it, dropping non-positive entries.
func (it Items) Clone() Items {
	out := make(Items, len(it))
	for k, n := range it {
		if n > 0 {
			out[k] = n
		}
	}
	return out
}

// Kinds returns the kinds with a positive quantity, sorted.
func (it Items) Kinds() []string {
	kinds := make([]string, 0, len(it))
	for k, n := range it {
		if n > 0 {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	return kinds
}

// Empty reports whether no kind has a positive quantity.
func (it Items) Empty() bool {
	return len(it.Kinds()) == 0
}

// String renders the items as "3 x stone, 1 x torch" in kind order.
func (it Items) String() string {
	kinds := it.Kinds()
	if len(kinds) == 0 {
		return "nothing"
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d x %s", it[k], k)
	}
	return strings.Join(parts, ", ")
}
