// Package memory holds session state entirely in process memory. It is the
// default backend: initialized empty per session, discarded when the
// session is dropped.
package memory

import (
	"context"
	"sync"

	"tally/internal/core"
	"tally/internal/store"
)

type sessionState struct {
	ledger   *core.Ledger
	registry *core.Registry
}

type Store struct {
	mu           sync.Mutex
	sessions     map[string]*sessionState
	expenseSeeds []string
	incomeSeeds  []string
}

func New(expenseSeeds, incomeSeeds []string) *Store {
	return &Store{
		sessions:     make(map[string]*sessionState),
		expenseSeeds: expenseSeeds,
		incomeSeeds:  incomeSeeds,
	}
}

// NewFromFiles seeds category defaults from files under base.
func NewFromFiles(base string) *Store {
	expense, income := store.LoadSeeds(base)
	return New(expense, income)
}

// session returns (creating on demand) the state for a session ID.
// Callers must hold mu.
func (s *Store) session(id string) *sessionState {
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{
			ledger:   core.NewLedger(),
			registry: core.NewRegistry(s.expenseSeeds, s.incomeSeeds),
		}
		s.sessions[id] = st
	}
	return st
}

func (s *Store) Transactions(_ context.Context, sid string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(sid).ledger.All(), nil
}

func (s *Store) AddTransaction(_ context.Context, sid string, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(sid).ledger.Add(t)
	return nil
}

func (s *Store) EditTransaction(_ context.Context, sid string, pos int, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(sid).ledger.Edit(pos, t)
}

func (s *Store) DeleteTransaction(_ context.Context, sid string, pos int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(sid).ledger.Delete(pos)
}

func (s *Store) ReplaceTransactions(_ context.Context, sid string, ts []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(sid).ledger.Replace(ts)
	return nil
}

func (s *Store) AppendTransactions(_ context.Context, sid string, ts []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(sid).ledger.Append(ts...)
	return nil
}

func (s *Store) Categories(_ context.Context, sid string, k core.Kind) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(sid).registry.List(k), nil
}

func (s *Store) AddCategory(_ context.Context, sid string, k core.Kind, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(sid).registry.Add(k, name)
}

func (s *Store) DropSession(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

var _ store.Store = (*Store)(nil)
