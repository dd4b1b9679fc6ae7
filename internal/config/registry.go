package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/signshop/internal/shopstore"
)

// ErrBackendNotRegistered is returned by [Registry.CreateStore] when no
// factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: storage backend not registered")

// StoreFactory opens a registry store from its configuration.
type StoreFactory func(ctx context.Context, cfg StorageConfig) (shopstore.Store, error)

// Registry maps storage backend names to their constructors. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stores map[StorageBackend]StoreFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{stores: make(map[StorageBackend]StoreFactory)}
}

// DefaultRegistry returns a [Registry] with the built-in memory, file and
// postgres backends registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterStore(StorageMemory, func(context.Context, StorageConfig) (shopstore.Store, error) {
		return shopstore.NewMemStore(), nil
	})
	r.RegisterStore(StorageFile, func(_ context.Context, cfg StorageConfig) (shopstore.Store, error) {
		return shopstore.NewFileStore(cfg.Path), nil
	})
	r.RegisterStore(StoragePostgres, func(ctx context.Context, cfg StorageConfig) (shopstore.Store, error) {
		return shopstore.OpenPostgres(ctx, cfg.PostgresDSN)
	})
	return r
}

// RegisterStore registers a store factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterStore(name StorageBackend, factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = factory
}

// Backends returns the registered backend names in sorted order.
func (r *Registry) Backends() []StorageBackend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]StorageBackend, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// CreateStore opens the store registered under cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory exists for that name.
func (r *Registry) CreateStore(ctx context.Context, cfg StorageConfig) (shopstore.Store, error) {
	r.mu.RLock()
	factory, ok := r.stores[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	s, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: open %s store: %w", cfg.Backend, err)
	}
	return s, nil
}
