package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

// NewMemoryStore returns a MemoryStore seeded with the given users.
func NewMemoryStore(users ...User) *MemoryStore {
	s := &MemoryStore{users: make(map[uuid.UUID]User, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *MemoryStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) FindByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.StripeCustomerID != "" && u.StripeCustomerID == customerID {
			u := u
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.StripeCustomerID = customerID
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}
