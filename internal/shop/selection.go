package shop

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/signshop/pkg/types"
)

// Compile-time assertion that SelectionStack satisfies Selections.
var _ Selections = (*SelectionStack)(nil)

// maxStaged bounds how many locations a player can stage before the oldest
// are dropped.
const maxStaged = 8

// SelectionStack is a thread-safe, in-memory [Selections].
// The zero value is ready to use.
type SelectionStack struct {
	mu     sync.Mutex
	staged map[uuid.UUID][]types.Location
}

// NewSelectionStack returns an initialised [SelectionStack].
func NewSelectionStack() *SelectionStack {
	return &SelectionStack{staged: make(map[uuid.UUID][]types.Location)}
}

// Push stages loc on top of player's stack. Staging the current top again is
// a no-op.
func (s *SelectionStack) Push(player uuid.UUID, loc types.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		s.staged = make(map[uuid.UUID][]types.Location)
	}
	stack := s.staged[player]
	if n := len(stack); n > 0 && stack[n-1] == loc {
		return
	}
	stack = append(stack, loc)
	if len(stack) > maxStaged {
		stack = stack[len(stack)-maxStaged:]
	}
	s.staged[player] = stack
}

// Staged returns a copy of player's stack, bottom first.
func (s *SelectionStack) Staged(player uuid.UUID) []types.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.staged[player])
}

// Clear drops player's stack.
func (s *SelectionStack) Clear(player uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, player)
}
