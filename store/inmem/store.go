// Package inmem provides an in-memory Store with optimistic version checks.
// It is the reference implementation used in tests and single-process hosts.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/martinemde/orchestra"
)

type record struct {
	exec  orchestra.Execution
	turns orchestra.Conversation
}

// Store keeps execution state in process memory, serializing conflicting
// writes through version comparison.
type Store struct {
	mu      sync.RWMutex
	records map[orchestra.ExecutionID]record
}

var _ orchestra.Store = (*Store)(nil)

func New() *Store {
	return &Store{records: map[orchestra.ExecutionID]record{}}
}

func (s *Store) Create(_ context.Context, exec orchestra.Execution, turns orchestra.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[exec.ID]; exists {
		return fmt.Errorf("%w: %q", orchestra.ErrExecutionExists, exec.ID)
	}

	exec.Version = 1
	s.records[exec.ID] = record{exec: exec, turns: turns.Clone()}
	return nil
}

func (s *Store) Load(_ context.Context, id orchestra.ExecutionID) (orchestra.Execution, orchestra.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return orchestra.Execution{}, nil, fmt.Errorf("%w: %q", orchestra.ErrExecutionNotFound, id)
	}
	return rec.exec, rec.turns.Clone(), nil
}

func (s *Store) CompareAndSwap(_ context.Context, id orchestra.ExecutionID, expectedVersion int64, exec orchestra.Execution, turns orchestra.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %q", orchestra.ErrExecutionNotFound, id)
	}
	if current.exec.Version != expectedVersion {
		return fmt.Errorf(
			"%w: execution %q at version %d, write expected %d",
			orchestra.ErrVersionConflict, id, current.exec.Version, expectedVersion,
		)
	}

	exec.Version = expectedVersion + 1
	s.records[id] = record{exec: exec, turns: turns.Clone()}
	return nil
}
