package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/core/ports"
)

// memStore is a mutex-guarded PollStore used to exercise the services
// without a bolt file.
type memStore struct {
	mu    sync.Mutex
	polls map[domain.PollID]*domain.Poll
	err   error
}

func newMemStore() *memStore {
	return &memStore{polls: make(map[domain.PollID]*domain.Poll)}
}

func (m *memStore) PutNew(_ context.Context, id domain.PollID, poll *domain.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.polls[id]; ok {
		return fmt.Errorf("poll %s: %w", id, domain.ErrAlreadyExists)
	}
	m.polls[id] = poll.Clone()
	return nil
}

func (m *memStore) Get(_ context.Context, id domain.PollID) (*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, fmt.Errorf("poll %s: %w", id, domain.ErrPollNotFound)
	}
	return p.Clone(), nil
}

func (m *memStore) UpdateAtomic(_ context.Context, id domain.PollID, fn ports.TransformFunc) (*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, fmt.Errorf("poll %s: %w", id, domain.ErrPollNotFound)
	}
	next, err := fn(p.Clone())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransformFailed, err)
	}
	m.polls[id] = next.Clone()
	return next.Clone(), nil
}

func (m *memStore) ForEach(ctx context.Context, fn func(*domain.Poll) error) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.polls))
	for id := range m.polls {
		ids = append(ids, string(id))
	}
	m.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		p, err := m.Get(ctx, domain.PollID(id))
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Close() error { return nil }

// seqIDs hands out the ids in order, repeating the last one when exhausted.
type seqIDs struct {
	mu  sync.Mutex
	ids []domain.PollID
}

func (s *seqIDs) NewPollID() domain.PollID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	if len(s.ids) > 1 {
		s.ids = s.ids[1:]
	}
	return id
}

type memSink struct {
	polls   []*domain.Poll
	failOn  domain.PollID
	closed  bool
	aborted bool
}

func (s *memSink) Write(_ context.Context, poll *domain.Poll) error {
	if poll.ID == s.failOn {
		return fmt.Errorf("sink refused %s", poll.ID)
	}
	s.polls = append(s.polls, poll)
	return nil
}

func (s *memSink) Close(context.Context) error {
	s.closed = true
	return nil
}

func (s *memSink) Abort() error {
	s.aborted = true
	return nil
}
