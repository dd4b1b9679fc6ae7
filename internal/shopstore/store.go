// Package shopstore persists the shop registry between runs.
//
// A [Store] saves and loads the complete list of [shop.Record] values as one
// unit: Save replaces whatever was stored before, so a crash mid-write never
// leaves half of an old registry next to half of a new one. Three backends
// are provided: [MemStore] for tests, [FileStore] (a YAML document replaced
// atomically) and [PostgresStore].
package shopstore

import (
	"context"
	"errors"

	"github.com/MrWong99/signshop/internal/shop"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("shopstore: store is closed")

// Store loads and saves the shop registry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns every stored record. An empty or missing store yields an
	// empty slice and no error.
	Load(ctx context.Context) ([]shop.Record, error)

	// Save atomically replaces the stored records with records.
	Save(ctx context.Context, records []shop.Record) error

	// Close releases resources held by the store.
	Close() error
}

// Pinger is implemented by stores backed by a remote service that can be
// probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
