package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpsertParams carries the field set extracted from a Stripe subscription
// event. The store applies it with different column sets depending on
// whether the record already exists; see Store.Upsert.
type UpsertParams struct {
	UserID uuid.UUID

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
}

// Store defines subscription persistence. Each user has at most one
// record; UserID is the conflict key for all writes.
type Store interface {
	// Find retrieves the subscription for a user.
	// Returns ErrSubscriptionNotFound if none exists.
	Find(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Upsert creates or updates the record keyed by UserID in a single
	// atomic write. The create branch sets every field; the update branch
	// deliberately leaves CurrentPeriodStart and CancelAtPeriodEnd
	// untouched - those are only written when the record is first
	// established. Callers rely on this asymmetry.
	Upsert(ctx context.Context, params UpsertParams) error

	// UpdateStatus sets only the status field.
	// Returns ErrSubscriptionNotFound if no record exists.
	UpdateStatus(ctx context.Context, userID uuid.UUID, status Status) error

	// MarkCanceled force-sets status to canceled and records the
	// cancellation time. The row itself is preserved.
	MarkCanceled(ctx context.Context, userID uuid.UUID, canceledAt time.Time) error

	// ListByTrialEnd returns subscriptions in the given status whose
	// trial end falls within [from, to).
	ListByTrialEnd(ctx context.Context, status Status, from, to time.Time) ([]Subscription, error)

	// ListRenewalsDue returns active subscriptions not flagged to cancel
	// at period end whose current period end falls within [from, to).
	ListRenewalsDue(ctx context.Context, from, to time.Time) ([]Subscription, error)
}
