package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/physioflow/billing/pkg/pg"
)

// PGStore is the PostgreSQL-backed subscription store. All mutation runs
// as single statements scoped to one user's row, so concurrent webhook
// deliveries for the same user resolve last-write-wins at the database.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const subscriptionColumns = `
	id, user_id, stripe_subscription_id, stripe_customer_id,
	stripe_price_id, stripe_product_id, status,
	current_period_start, current_period_end, trial_start, trial_end,
	cancel_at_period_end, canceled_at, created_at, updated_at`

func (s *PGStore) Find(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)

	sub, err := scanSubscription(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// Upsert writes the record in one INSERT ... ON CONFLICT statement. The
// DO UPDATE set deliberately omits current_period_start and
// cancel_at_period_end: those columns are only written on create.
func (s *PGStore) Upsert(ctx context.Context, params UpsertParams) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, stripe_subscription_id, stripe_customer_id,
			stripe_price_id, stripe_product_id, status,
			current_period_start, current_period_end, trial_start, trial_end,
			cancel_at_period_end, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			stripe_customer_id     = EXCLUDED.stripe_customer_id,
			stripe_price_id        = EXCLUDED.stripe_price_id,
			stripe_product_id      = EXCLUDED.stripe_product_id,
			status                 = EXCLUDED.status,
			current_period_end     = EXCLUDED.current_period_end,
			trial_start            = EXCLUDED.trial_start,
			trial_end              = EXCLUDED.trial_end,
			updated_at             = now()`,
		uuid.New(), params.UserID, params.StripeSubscriptionID, params.StripeCustomerID,
		params.StripePriceID, params.StripeProductID, params.Status,
		params.CurrentPeriodStart, params.CurrentPeriodEnd, params.TrialStart, params.TrialEnd,
		params.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, userID uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = now() WHERE user_id = $1`,
		userID, status)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *PGStore) MarkCanceled(ctx context.Context, userID uuid.UUID, canceledAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $2, canceled_at = $3, updated_at = now()
		 WHERE user_id = $1`,
		userID, StatusCanceled, canceledAt)
	if err != nil {
		return fmt.Errorf("failed to mark subscription canceled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *PGStore) ListByTrialEnd(ctx context.Context, status Status, from, to time.Time) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = $1 AND trial_end >= $2 AND trial_end < $3`,
		status, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by trial end: %w", err)
	}
	return collectSubscriptions(rows)
}

func (s *PGStore) ListRenewalsDue(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE status = $1 AND cancel_at_period_end = false
		   AND current_period_end >= $2 AND current_period_end < $3`,
		StatusActive, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list renewals due: %w", err)
	}
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]Subscription, error) {
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.StripeSubscriptionID, &sub.StripeCustomerID,
		&sub.StripePriceID, &sub.StripeProductID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialStart, &sub.TrialEnd,
		&sub.CancelAtPeriodEnd, &sub.CanceledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
