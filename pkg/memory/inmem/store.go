// Package inmem provides a process-local [memory.Store]. It backs the server
// when no database is configured and is the reference implementation the
// postgres store is tested against.
package inmem

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/mockinterview/pkg/memory"
)

var _ memory.Store = (*Store)(nil)

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps interviews in a map guarded by a mutex.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	interviews map[string]*memory.Interview
	hashes     map[string]map[string]struct{}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		interviews: make(map[string]*memory.Interview),
		hashes:     make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create implements [memory.Store].
func (s *Store) Create(_ context.Context, status memory.Status, config json.RawMessage) (memory.Interview, error) {
	if status == "" {
		status = memory.StatusInProgress
	}
	if !status.Valid() {
		return memory.Interview{}, fmt.Errorf("inmem: create: unknown status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	iv := &memory.Interview{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    status,
		Config:    memory.NormalizeConfig(config),
		Messages:  []memory.Message{},
	}
	s.interviews[iv.ID] = iv
	return clone(iv), nil
}

// Get implements [memory.Store].
func (s *Store) Get(_ context.Context, id string) (memory.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.interviews[id]
	if !ok {
		return memory.Interview{}, memory.ErrNotFound
	}
	return clone(iv), nil
}

// List implements [memory.Store].
func (s *Store) List(_ context.Context, limit int) ([]memory.Interview, error) {
	if limit <= 0 {
		limit = memory.DefaultListLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*memory.Interview, 0, len(s.interviews))
	for _, iv := range s.interviews {
		all = append(all, iv)
	}
	slices.SortFunc(all, func(a, b *memory.Interview) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}

	out := make([]memory.Interview, len(all))
	for i, iv := range all {
		out[i] = clone(iv)
	}
	return out, nil
}

// Update implements [memory.Store].
func (s *Store) Update(_ context.Context, id string, u memory.Update) (memory.Interview, error) {
	if u.Status != "" && !u.Status.Valid() {
		return memory.Interview{}, fmt.Errorf("inmem: update: unknown status %q", u.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.interviews[id]
	if !ok {
		return memory.Interview{}, memory.ErrNotFound
	}
	if u.Status != "" {
		iv.Status = u.Status
	}
	if u.Config != nil {
		iv.Config = memory.NormalizeConfig(u.Config)
	}
	if u.Messages != nil {
		iv.Messages = slices.Clone(u.Messages)
	}
	iv.UpdatedAt = s.now()
	return clone(iv), nil
}

// Delete implements [memory.Store].
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.interviews[id]; !ok {
		return memory.ErrNotFound
	}
	delete(s.interviews, id)
	delete(s.hashes, id)
	return nil
}

// DeleteAll implements [memory.Store].
func (s *Store) DeleteAll(_ context.Context, status memory.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, iv := range s.interviews {
		if status != "" && iv.Status != status {
			continue
		}
		delete(s.interviews, id)
		delete(s.hashes, id)
		n++
	}
	return n, nil
}

// AppendMessage implements [memory.Store].
func (s *Store) AppendMessage(_ context.Context, id string, msg memory.Message) (memory.AppendResult, error) {
	if err := memory.ValidateMessage(msg); err != nil {
		return memory.AppendResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	iv, ok := s.interviews[id]
	if !ok {
		return memory.AppendResult{}, memory.ErrNotFound
	}

	if i := slices.IndexFunc(iv.Messages, func(m memory.Message) bool {
		return m.TranscriptID == msg.TranscriptID
	}); i >= 0 {
		iv.Messages[i] = msg
		iv.UpdatedAt = s.now()
		return memory.AppendResult{MessageCount: len(iv.Messages)}, nil
	}

	hash := memory.ContentHash(id, msg.Transcript)
	seen := s.hashes[id]
	if _, dup := seen[hash]; dup {
		return memory.AppendResult{Duplicate: true, MessageCount: len(iv.Messages)}, nil
	}
	if seen == nil {
		seen = make(map[string]struct{})
		s.hashes[id] = seen
	}
	seen[hash] = struct{}{}

	iv.Messages = append(iv.Messages, msg)
	iv.UpdatedAt = s.now()
	return memory.AppendResult{MessageCount: len(iv.Messages)}, nil
}

func clone(iv *memory.Interview) memory.Interview {
	out := *iv
	out.Config = slices.Clone(iv.Config)
	out.Messages = slices.Clone(iv.Messages)
	if out.Messages == nil {
		out.Messages = []memory.Message{}
	}
	return out
}
