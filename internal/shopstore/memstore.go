package shopstore

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/signshop/internal/shop"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. Nothing survives a restart;
// it is meant for tests and throwaway sandboxes. The zero value is ready to
// use.
type MemStore struct {
	mu      sync.RWMutex
	records []shop.Record
	saves   int
	closed  bool
}

// NewMemStore returns a [MemStore] preloaded with records.
func NewMemStore(records ...shop.Record) *MemStore {
	return &MemStore{records: cloneRecords(records)}
}

// Load implements [Store.Load].
func (s *MemStore) Load(_ context.Context) ([]shop.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return cloneRecords(s.records), nil
}

// Save implements [Store.Save].
func (s *MemStore) Save(_ context.Context, records []shop.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records = cloneRecords(records)
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close implements [Store.Close].
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// cloneRecords deep-copies the pointer and map fields of records.
func cloneRecords(records []shop.Record) []shop.Record {
	out := slices.Clone(records)
	if out == nil {
		out = []shop.Record{}
	}
	for i := range out {
		r := &out[i]
		if r.Owner != nil {
			id := *r.Owner
			r.Owner = &id
		}
		if r.Stock != nil {
			loc := *r.Stock
			r.Stock = &loc
		}
		if r.Device != nil {
			loc := *r.Device
			r.Device = &loc
		}
		if r.Items != nil {
			r.Items = r.Items.Clone()
		}
		if r.Give != nil {
			r.Give = r.Give.Clone()
		}
	}
	return out
}
