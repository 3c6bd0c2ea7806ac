package profile

import (
	"context"
	"sync"
)

// MemoryStore keeps profiles in a map (for testing/dev).
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

func (m *MemoryStore) GetProfile(_ context.Context, lineUserID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[lineUserID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) InsertProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.LineUserID]; ok {
		return ErrExists
	}
	m.profiles[p.LineUserID] = p
	return nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.LineUserID]; !ok {
		return ErrNotFound
	}
	m.profiles[p.LineUserID] = p
	return nil
}
