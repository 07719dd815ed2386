package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/physioflow/billing/internal/user"
)

// Evaluator answers entitlement queries from the user and subscription
// stores. It is read-only; all methods have ...At variants taking an
// explicit instant so tests can pin the clock.
type Evaluator struct {
	users user.Store
	subs  Store
}

func NewEvaluator(users user.Store, subs Store) *Evaluator {
	if users == nil {
		panic("billing: user store is required")
	}
	if subs == nil {
		panic("billing: subscription store is required")
	}
	return &Evaluator{users: users, subs: subs}
}

// HasActiveAccess reports whether the user may use the paid product now.
func (e *Evaluator) HasActiveAccess(ctx context.Context, userID uuid.UUID) (bool, error) {
	return e.HasActiveAccessAt(ctx, userID, time.Now().UTC())
}

// HasActiveAccessAt evaluates access at the given instant.
// Admins and practitioners are exempt from billing entirely and never need
// a subscription record. For everyone else: trialing and active grant
// access; past due grants access through the grace period (boundary
// inclusive); all other statuses and a missing record deny.
func (e *Evaluator) HasActiveAccessAt(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	u, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}

	if u.Role == user.RoleAdmin || u.Role == user.RolePractitioner {
		return true, nil
	}

	rec, err := e.subs.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up subscription for user %s: %w", userID, err)
	}

	return rec.AccessibleAt(now), nil
}

// DaysUntilTrialEnd returns the whole days left in the user's trial, or
// nil when the user is not trialing (or has no trial end recorded).
func (e *Evaluator) DaysUntilTrialEnd(ctx context.Context, userID uuid.UUID) (*int, error) {
	return e.DaysUntilTrialEndAt(ctx, userID, time.Now().UTC())
}

// DaysUntilTrialEndAt evaluates the trial remainder at the given instant.
// Partial days round up; the result is never negative.
func (e *Evaluator) DaysUntilTrialEndAt(ctx context.Context, userID uuid.UUID, now time.Time) (*int, error) {
	rec, err := e.subs.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up subscription for user %s: %w", userID, err)
	}

	if rec.Status != StatusTrialing || rec.TrialEnd == nil {
		return nil, nil
	}

	days := rec.TrialDaysRemainingAt(now)
	return &days, nil
}

// IsInGracePeriod reports whether the user is past due but still within
// the post-period grace window.
func (e *Evaluator) IsInGracePeriod(ctx context.Context, userID uuid.UUID) (bool, error) {
	return e.IsInGracePeriodAt(ctx, userID, time.Now().UTC())
}

// IsInGracePeriodAt evaluates the grace window at the given instant.
func (e *Evaluator) IsInGracePeriodAt(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	rec, err := e.subs.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up subscription for user %s: %w", userID, err)
	}

	return rec.InGracePeriodAt(now), nil
}
