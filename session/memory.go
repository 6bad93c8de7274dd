package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory; they are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]uint)}
}

func (s *MemoryStore) Put(_ context.Context, token string, userID uint) error {
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (uint, error) {
	s.mu.RLock()
	uid, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	return uid, nil
}

func (s *MemoryStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RemoveAllForUser(_ context.Context, userID uint) error {
	s.mu.Lock()
	for t, uid := range s.tokens {
		if uid == userID {
			delete(s.tokens, t)
		}
	}
	s.mu.Unlock()
	return nil
}
