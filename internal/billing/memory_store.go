package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and local development.
// The mutex gives the same per-row last-write-wins behavior the SQL
// upsert provides.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

func (s *MemoryStore) Find(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, params UpsertParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.subs[params.UserID]
	if !ok {
		s.subs[params.UserID] = Subscription{
			ID:                   uuid.New(),
			UserID:               params.UserID,
			StripeSubscriptionID: params.StripeSubscriptionID,
			StripeCustomerID:     params.StripeCustomerID,
			StripePriceID:        params.StripePriceID,
			StripeProductID:      params.StripeProductID,
			Status:               params.Status,
			CurrentPeriodStart:   params.CurrentPeriodStart,
			CurrentPeriodEnd:     params.CurrentPeriodEnd,
			TrialStart:           params.TrialStart,
			TrialEnd:             params.TrialEnd,
			CancelAtPeriodEnd:    params.CancelAtPeriodEnd,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return nil
	}

	// Update branch: CurrentPeriodStart and CancelAtPeriodEnd keep their
	// created values, matching the SQL upsert's column sets.
	existing.StripeSubscriptionID = params.StripeSubscriptionID
	existing.StripeCustomerID = params.StripeCustomerID
	existing.StripePriceID = params.StripePriceID
	existing.StripeProductID = params.StripeProductID
	existing.Status = params.Status
	existing.CurrentPeriodEnd = params.CurrentPeriodEnd
	existing.TrialStart = params.TrialStart
	existing.TrialEnd = params.TrialEnd
	existing.UpdatedAt = now
	s.subs[params.UserID] = existing
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, userID uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	s.subs[userID] = sub
	return nil
}

func (s *MemoryStore) MarkCanceled(ctx context.Context, userID uuid.UUID, canceledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.Status = StatusCanceled
	sub.CanceledAt = &canceledAt
	sub.UpdatedAt = time.Now().UTC()
	s.subs[userID] = sub
	return nil
}

func (s *MemoryStore) ListByTrialEnd(ctx context.Context, status Status, from, to time.Time) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.Status != status || sub.TrialEnd == nil {
			continue
		}
		if inRange(*sub.TrialEnd, from, to) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRenewalsDue(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.Status != StatusActive || sub.CancelAtPeriodEnd {
			continue
		}
		if inRange(sub.CurrentPeriodEnd, from, to) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
