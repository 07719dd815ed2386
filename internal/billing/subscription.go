package billing

import (
	"time"

	"github.com/google/uuid"
)

// GracePeriod is how long a past-due subscription keeps product access
// after its paid period ends.
const GracePeriod = 7 * 24 * time.Hour

// Subscription is the locally persisted billing record, one per user.
// It reflects Stripe's view as of the last processed webhook event. The
// row is never deleted: cancellation is a soft-terminal status so history
// and re-subscription continuity survive.
type Subscription struct {
	ID     uuid.UUID
	UserID uuid.UUID // unique, enforces the 1:1 user relation

	StripeSubscriptionID string
	StripeCustomerID     string
	StripePriceID        string
	StripeProductID      string

	Status Status

	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time

	CancelAtPeriodEnd bool
	CanceledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GraceDeadline is the instant past-due access expires. Always derived,
// never stored.
func (s *Subscription) GraceDeadline() time.Time {
	return s.CurrentPeriodEnd.Add(GracePeriod)
}

// InGracePeriodAt reports whether the subscription is past due but still
// within the grace window at the given instant. The boundary is inclusive:
// exactly at the deadline is still in grace.
func (s *Subscription) InGracePeriodAt(now time.Time) bool {
	return s.Status == StatusPastDue && !now.After(s.GraceDeadline())
}

// AccessibleAt reports whether this record alone grants product access at
// the given instant. Role exemptions are layered on top by the Evaluator.
func (s *Subscription) AccessibleAt(now time.Time) bool {
	switch s.Status {
	case StatusTrialing, StatusActive:
		return true
	case StatusPastDue:
		return s.InGracePeriodAt(now)
	default:
		return false
	}
}

// TrialDaysRemainingAt returns whole days left in the trial at the given
// instant. Partial days round up (12 hours left reports as 1) and the
// result is never negative.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if s.TrialEnd == nil {
		return 0
	}
	remaining := s.TrialEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((remaining + day - 1) / day)
}
