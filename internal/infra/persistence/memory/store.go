// Package memory provides the in-memory storage backend. Its Storage type also
// serves as the private cache of a unit of work.
package memory

import (
	"context"
	"sync"

	"gridrank/pkg/domain"
	"gridrank/pkg/eventbus"
)

var _ domain.DataSource = (*Store)(nil)

// Store is an in-memory DataSource. A transaction applies events to a clone of
// the committed state and swaps the clone in on commit. Transactions are
// serialized; readers always see the last committed state.
type Store struct {
	mu    sync.RWMutex
	state *Storage

	// writer is held from Begin until the transaction finishes.
	writer sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: NewStorage()}
}

func (s *Store) view(fn func(*Storage)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Repositories returns lookups over the committed state.
func (s *Store) Repositories(bus eventbus.Publisher) domain.Repositories {
	return newRepositories(s, bus)
}

// Begin starts a transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (domain.TransactionalEventHandler, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.writer.Lock()
	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()
	return &transaction{EventHandler: NewEventHandler(working), store: s, working: working}, nil
}

// Drop deletes every row.
func (s *Store) Drop(context.Context) error {
	s.writer.Lock()
	defer s.writer.Unlock()
	s.mu.Lock()
	s.state = NewStorage()
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Snapshot copies the committed state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Snapshot()
}

type transaction struct {
	*EventHandler
	store   *Store
	working *Storage
	done    bool
}

func (tx *transaction) Commit(context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Lock()
	tx.store.state = tx.working
	tx.store.mu.Unlock()
	tx.store.writer.Unlock()
	return nil
}

func (tx *transaction) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.working = nil
	tx.store.writer.Unlock()
	return nil
}
