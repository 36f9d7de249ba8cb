// Package mock provides a recording test double for [memory.Store].
//
// Store delegates to an in-memory store so round trips behave realistically,
// while Err short-circuits every call for failure-path tests.
//
//	store := mock.New()
//	store.Err = errors.New("db down")
package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/memory"
	"github.com/MrWong99/mockinterview/pkg/memory/inmem"
)

var _ memory.Store = (*Store)(nil)

// Call records the name and non-context arguments of one method invocation.
type Call struct {
	Method string
	Args   []any
}

// Store is a [memory.Store] that records calls.
type Store struct {
	backing *inmem.Store

	mu    sync.Mutex
	calls []Call

	// Err, if non-nil, is returned by every method instead of delegating.
	Err error
}

// New returns a Store backed by an empty in-memory store.
func New() *Store {
	return &Store{backing: inmem.New()}
}

func (s *Store) record(method string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Args: args})
	return s.Err
}

// Calls returns a snapshot of the recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many times method was called.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (s *Store) Create(ctx context.Context, status memory.Status, config json.RawMessage) (memory.Interview, error) {
	if err := s.record("Create", status, config); err != nil {
		return memory.Interview{}, err
	}
	return s.backing.Create(ctx, status, config)
}

func (s *Store) Get(ctx context.Context, id string) (memory.Interview, error) {
	if err := s.record("Get", id); err != nil {
		return memory.Interview{}, err
	}
	return s.backing.Get(ctx, id)
}

func (s *Store) List(ctx context.Context, limit int) ([]memory.Interview, error) {
	if err := s.record("List", limit); err != nil {
		return nil, err
	}
	return s.backing.List(ctx, limit)
}

func (s *Store) Update(ctx context.Context, id string, u memory.Update) (memory.Interview, error) {
	if err := s.record("Update", id, u); err != nil {
		return memory.Interview{}, err
	}
	return s.backing.Update(ctx, id, u)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.record("Delete", id); err != nil {
		return err
	}
	return s.backing.Delete(ctx, id)
}

func (s *Store) DeleteAll(ctx context.Context, status memory.Status) (int, error) {
	if err := s.record("DeleteAll", status); err != nil {
		return 0, err
	}
	return s.backing.DeleteAll(ctx, status)
}

func (s *Store) AppendMessage(ctx context.Context, id string, msg memory.Message) (memory.AppendResult, error) {
	if err := s.record("AppendMessage", id, msg); err != nil {
		return memory.AppendResult{}, err
	}
	return s.backing.AppendMessage(ctx, id, msg)
}
