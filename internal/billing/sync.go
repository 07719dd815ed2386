package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"

	"github.com/physioflow/billing/internal/user"
	"github.com/physioflow/billing/pkg/logger"
)

// PaymentFailureNotice carries what the payment-failed notification needs.
type PaymentFailureNotice struct {
	Amount        Money
	Reason        string // optional, processor-provided failure message
	GraceDeadline time.Time
}

// PaymentFailureNotifier delivers the payment-failed notice to a user.
// Implemented by the notify package; a send failure is reported as an
// error, never a panic, and the synchronizer swallows it.
type PaymentFailureNotifier interface {
	PaymentFailed(ctx context.Context, u *user.User, notice PaymentFailureNotice) error
}

// Synchronizer applies verified Stripe webhook events to the local
// subscription store. Every operation is an idempotent overwrite keyed by
// user id, so at-least-once and out-of-order delivery are tolerated.
type Synchronizer struct {
	users    user.Store
	subs     Store
	fetcher  SubscriptionFetcher
	tracker  Tracker
	notifier PaymentFailureNotifier
	log      *slog.Logger
	now      func() time.Time
}

// SyncOption configures optional Synchronizer dependencies.
type SyncOption func(*Synchronizer)

// WithTracker sets the analytics sink for domain events.
func WithTracker(t Tracker) SyncOption {
	return func(s *Synchronizer) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithPaymentFailureNotifier sets the payment-failed notification channel.
func WithPaymentFailureNotifier(n PaymentFailureNotifier) SyncOption {
	return func(s *Synchronizer) { s.notifier = n }
}

// WithSyncLogger sets the logger.
func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *Synchronizer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSyncClock overrides the time source, used in tests.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer creates a Synchronizer.
// Panics if required dependencies are nil to fail fast during initialization.
func NewSynchronizer(users user.Store, subs Store, fetcher SubscriptionFetcher, opts ...SyncOption) *Synchronizer {
	if users == nil {
		panic("billing: user store is required")
	}
	if subs == nil {
		panic("billing: subscription store is required")
	}
	if fetcher == nil {
		panic("billing: subscription fetcher is required")
	}

	s := &Synchronizer{
		users:   users,
		subs:    subs,
		fetcher: fetcher,
		tracker: NoopTracker{},
		log:     slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleCheckoutCompleted processes checkout.session.completed. The session
// must carry our user id in metadata; without it the purchase cannot be
// attributed and the event is dropped with a warning. On success the Stripe
// customer id is persisted on the user, full subscription state is fetched
// from the processor, and the record is upserted.
func (s *Synchronizer) HandleCheckoutCompleted(ctx context.Context, session stripe.CheckoutSession) error {
	rawID := session.Metadata["user_id"]
	if rawID == "" {
		s.log.WarnContext(ctx, "checkout session without user_id metadata, cannot attribute purchase",
			logger.EventType("checkout.session.completed"))
		return nil
	}

	userID, err := uuid.Parse(rawID)
	if err != nil {
		s.log.WarnContext(ctx, "checkout session with malformed user_id metadata",
			slog.String("raw_user_id", rawID), logger.Error(err))
		return nil
	}

	if session.Customer == nil || session.Subscription == nil {
		s.log.WarnContext(ctx, "checkout session missing customer or subscription reference",
			logger.UserID(userID))
		return nil
	}

	if err := s.users.SetStripeCustomerID(ctx, userID, session.Customer.ID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.log.WarnContext(ctx, "checkout session references unknown user",
				logger.UserID(userID), logger.CustomerID(session.Customer.ID))
			return nil
		}
		return fmt.Errorf("failed to persist stripe customer id: %w", err)
	}

	full, err := s.fetcher.Subscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}

	if err := s.HandleSubscriptionUpsert(ctx, full); err != nil {
		return err
	}

	s.tracker.Track(Event{
		Name:   EventSubscriptionCompleted,
		UserID: userID,
		Properties: map[string]string{
			"subscription_id": session.Subscription.ID,
		},
	})
	return nil
}

// HandleSubscriptionUpsert processes customer.subscription.created/updated.
// Webhooks for customers without a local user (test-mode noise, deleted
// accounts) are ignored; an unmapped status is propagated as a fatal error.
func (s *Synchronizer) HandleSubscriptionUpsert(ctx context.Context, sub *stripe.Subscription) error {
	if sub == nil || sub.Customer == nil {
		s.log.WarnContext(ctx, "subscription event without customer reference")
		return nil
	}

	u, err := s.resolveUser(ctx, sub.Customer.ID)
	if err != nil || u == nil {
		return err
	}

	status, err := StatusFromStripe(sub.Status)
	if err != nil {
		return fmt.Errorf("subscription %s for user %s: %w", sub.ID, u.ID, err)
	}

	params := UpsertParams{
		UserID:               u.ID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.Customer.ID,
		Status:               status,
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		TrialStart:           epochPtr(sub.TrialStart),
		TrialEnd:             epochPtr(sub.TrialEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		params.StripePriceID = price.ID
		if price.Product != nil {
			params.StripeProductID = price.Product.ID
		}
	}

	if err := s.subs.Upsert(ctx, params); err != nil {
		return fmt.Errorf("failed to upsert subscription for user %s: %w", u.ID, err)
	}
	return nil
}

// HandleSubscriptionDeleted processes customer.subscription.deleted: the
// record is force-set to canceled but never removed.
func (s *Synchronizer) HandleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	if sub == nil || sub.Customer == nil {
		s.log.WarnContext(ctx, "subscription deletion event without customer reference")
		return nil
	}

	u, err := s.resolveUser(ctx, sub.Customer.ID)
	if err != nil || u == nil {
		return err
	}

	if err := s.subs.MarkCanceled(ctx, u.ID, s.now()); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.WarnContext(ctx, "deletion event for user without subscription record",
				logger.UserID(u.ID), logger.SubscriptionID(sub.ID))
			return nil
		}
		return fmt.Errorf("failed to cancel subscription for user %s: %w", u.ID, err)
	}

	s.tracker.Track(Event{
		Name:   EventSubscriptionCancelled,
		UserID: u.ID,
		Properties: map[string]string{
			"subscription_id": sub.ID,
		},
	})
	return nil
}

// HandleInvoicePaymentSucceeded processes invoice.payment_succeeded as a
// recovery path: past-due and unpaid subscriptions flip back to active.
// Any other status is left alone so a replayed payment event cannot
// resurrect a canceled subscription.
func (s *Synchronizer) HandleInvoicePaymentSucceeded(ctx context.Context, inv *stripe.Invoice) error {
	if inv == nil || inv.Customer == nil {
		return nil
	}

	u, err := s.resolveUser(ctx, inv.Customer.ID)
	if err != nil || u == nil {
		return err
	}

	rec, err := s.subs.Find(ctx, u.ID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}

	if rec.Status != StatusPastDue && rec.Status != StatusUnpaid {
		return nil
	}

	if err := s.subs.UpdateStatus(ctx, u.ID, StatusActive); err != nil {
		return fmt.Errorf("failed to recover subscription for user %s: %w", u.ID, err)
	}
	return nil
}

// HandleInvoicePaymentFailed processes invoice.payment_failed: an active
// subscription moves to past due and the user is told how long the grace
// period lasts. The notification is fire-and-forget - a dispatch failure
// must never bubble into the webhook response, because Stripe retries on
// 5xx and a retried event would move nothing (the status already changed)
// while the underlying mail problem persists.
func (s *Synchronizer) HandleInvoicePaymentFailed(ctx context.Context, inv *stripe.Invoice) error {
	if inv == nil || inv.Customer == nil {
		return nil
	}

	u, err := s.resolveUser(ctx, inv.Customer.ID)
	if err != nil || u == nil {
		return err
	}

	rec, err := s.subs.Find(ctx, u.ID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}

	if rec.Status != StatusActive {
		return nil
	}

	if err := s.subs.UpdateStatus(ctx, u.ID, StatusPastDue); err != nil {
		return fmt.Errorf("failed to mark subscription past due for user %s: %w", u.ID, err)
	}

	if s.notifier == nil {
		return nil
	}

	notice := PaymentFailureNotice{
		Amount: Money{
			Amount:   inv.AmountDue,
			Currency: strings.ToUpper(string(inv.Currency)),
		},
		GraceDeadline: rec.GraceDeadline(),
	}
	if inv.LastFinalizationError != nil {
		notice.Reason = inv.LastFinalizationError.Msg
	}

	if err := s.notifier.PaymentFailed(ctx, u, notice); err != nil {
		s.log.ErrorContext(ctx, "failed to send payment failure notification",
			logger.UserID(u.ID), logger.Error(err))
	}
	return nil
}

// resolveUser maps a Stripe customer id to a local user. A missing user is
// benign (nil, nil): webhooks for unknown customers must not error the channel.
func (s *Synchronizer) resolveUser(ctx context.Context, customerID string) (*user.User, error) {
	u, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.log.InfoContext(ctx, "webhook for unknown stripe customer, ignoring",
				logger.CustomerID(customerID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve user for customer %s: %w", customerID, err)
	}
	return u, nil
}

func epochPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
