// Package sessions stores submission sessions, either in process memory or in
// a bbolt file that survives restarts.
package sessions

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/league/internal/domain/workflow"
)

// MemoryStore keeps sessions in a map guarded by one mutex.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]workflow.Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]workflow.Session)}
}

func (m *MemoryStore) Create(_ context.Context, s workflow.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (workflow.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return workflow.Session{}, workflow.ErrSessionNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*workflow.Session) error) (workflow.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return workflow.Session{}, workflow.ErrSessionNotFound
	}
	s = clone(s)
	if err := fn(&s); err != nil {
		return workflow.Session{}, err
	}
	m.sessions[id] = s
	return clone(s), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, state workflow.State) ([]workflow.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]workflow.Session, 0)
	for _, s := range m.sessions {
		if s.State == state {
			out = append(out, clone(s))
		}
	}
	byCreation(out)
	return out, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) ([]workflow.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []workflow.Session
	for id, s := range m.sessions {
		if s.Expired(now) {
			out = append(out, s)
			delete(m.sessions, id)
		}
	}
	byCreation(out)
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

// clone detaches the slices so callers cannot mutate stored state.
func clone(s workflow.Session) workflow.Session {
	s.Offered = slices.Clone(s.Offered)
	s.Replays = slices.Clone(s.Replays)
	return s
}

func byCreation(s []workflow.Session) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.Before(s[j].CreatedAt)
	})
}
