// Package session binds live connection ids to the username resolved at connect time.
package session

import (
	"sync"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

type Store struct {
	mu    sync.RWMutex
	users map[string]string // connID -> username
}

func NewStore() *Store {
	return &Store{users: make(map[string]string)}
}

// Register binds username to connID. Re-registering the same name is a no-op;
// a different name fails with domain.ErrAlreadyBound.
func (s *Store) Register(connID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.users[connID]; ok {
		if cur == username {
			return nil
		}
		return domain.ErrAlreadyBound
	}
	s.users[connID] = username

	return nil
}

func (s *Store) Lookup(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[connID]
	return u, ok
}

// Forget is a no-op for unknown ids.
func (s *Store) Forget(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, connID)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}
