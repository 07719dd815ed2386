package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/physioflow/billing/internal/billing"
	"github.com/physioflow/billing/internal/user"
	"github.com/physioflow/billing/pkg/logger"
)

// Result summarizes one scanner run. Counts reflect notifications that
// were actually delivered; failed recipients are reported in Errors
// without aborting the run.
type Result struct {
	TrialEndingCount int      `json:"trialEndingCount"`
	TrialEndedCount  int      `json:"trialEndedCount"`
	RenewalCount     int      `json:"renewalCount"`
	Errors           []string `json:"errors,omitempty"`
}

// Scanner walks the subscription table once per run and dispatches the
// time-based lifecycle notifications: trials ending in three days, trials
// that expired today without conversion, and renewals due in seven days.
// It is driven by a daily cron hitting the scan endpoint; running it twice
// on the same day re-sends the same notifications.
type Scanner struct {
	subs       billing.Store
	users      user.Store
	dispatcher Dispatcher
	catalog    billing.Catalog
	log        *slog.Logger
	now        func() time.Time
}

type ScannerOption func(*Scanner)

func WithScanLogger(log *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.log = log }
}

// WithScanClock overrides the scanner's time source. Intended for tests.
func WithScanClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

func NewScanner(subs billing.Store, users user.Store, dispatcher Dispatcher, catalog billing.Catalog, opts ...ScannerOption) *Scanner {
	if subs == nil {
		panic("notify: subscription store is required")
	}
	if users == nil {
		panic("notify: user store is required")
	}
	if dispatcher == nil {
		panic("notify: dispatcher is required")
	}
	s := &Scanner{
		subs:       subs,
		users:      users,
		dispatcher: dispatcher,
		catalog:    catalog,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes all three scans sequentially. A failure for one recipient
// is recorded and the run continues; only the final result reports it.
func (s *Scanner) Run(ctx context.Context) Result {
	now := s.now().UTC()
	var res Result

	s.scanTrialEnding(ctx, now, &res)
	s.scanTrialEnded(ctx, now, &res)
	s.scanRenewals(ctx, now, &res)

	s.log.InfoContext(ctx, "notification scan finished",
		slog.Int("trial_ending", res.TrialEndingCount),
		slog.Int("trial_ended", res.TrialEndedCount),
		slog.Int("renewals", res.RenewalCount),
		slog.Int("errors", len(res.Errors)),
	)
	return res
}

// scanTrialEnding notifies users still trialing whose trial ends on the
// calendar day three days from now.
func (s *Scanner) scanTrialEnding(ctx context.Context, now time.Time, res *Result) {
	from, to := dayBounds(now.AddDate(0, 0, 3))
	subs, err := s.subs.ListByTrialEnd(ctx, billing.StatusTrialing, from, to)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list trials ending: %v", err))
		return
	}

	for _, sub := range subs {
		u, err := s.users.FindByID(ctx, sub.UserID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("trial ending %s: %v", sub.UserID, err))
			continue
		}
		tag := matchLocale(u.PreferredLocale())
		err = s.dispatcher.Send(ctx, Message{
			To:       u.Email,
			Locale:   u.PreferredLocale(),
			Template: TemplateTrialEnding,
			Params: map[string]any{
				"days":           sub.TrialDaysRemainingAt(now),
				"trial_end_date": formatDate(tag, *sub.TrialEnd),
			},
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("trial ending %s: %v", sub.UserID, err))
			continue
		}
		res.TrialEndingCount++
	}
}

// scanTrialEnded notifies users whose trial expired today without a
// payment method ever being attached.
func (s *Scanner) scanTrialEnded(ctx context.Context, now time.Time, res *Result) {
	from, to := dayBounds(now)
	subs, err := s.subs.ListByTrialEnd(ctx, billing.StatusIncompleteExpired, from, to)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list trials ended: %v", err))
		return
	}

	for _, sub := range subs {
		u, err := s.users.FindByID(ctx, sub.UserID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("trial ended %s: %v", sub.UserID, err))
			continue
		}
		tag := matchLocale(u.PreferredLocale())
		err = s.dispatcher.Send(ctx, Message{
			To:       u.Email,
			Locale:   u.PreferredLocale(),
			Template: TemplateTrialEnded,
			Params: map[string]any{
				"trial_end_date": formatDate(tag, *sub.TrialEnd),
			},
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("trial ended %s: %v", sub.UserID, err))
			continue
		}
		res.TrialEndedCount++
	}
}

// scanRenewals reminds active subscribers whose current period ends on
// the calendar day seven days from now, unless cancellation is already
// scheduled.
func (s *Scanner) scanRenewals(ctx context.Context, now time.Time, res *Result) {
	from, to := dayBounds(now.AddDate(0, 0, 7))
	subs, err := s.subs.ListRenewalsDue(ctx, from, to)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("list renewals: %v", err))
		return
	}

	for _, sub := range subs {
		u, err := s.users.FindByID(ctx, sub.UserID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("renewal %s: %v", sub.UserID, err))
			continue
		}
		tag := matchLocale(u.PreferredLocale())
		err = s.dispatcher.Send(ctx, Message{
			To:       u.Email,
			Locale:   u.PreferredLocale(),
			Template: TemplateRenewalReminder,
			Params:   s.renewalParams(tag, sub),
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("renewal %s: %v", sub.UserID, err))
			continue
		}
		res.RenewalCount++
	}
}

func (s *Scanner) renewalParams(tag language.Tag, sub billing.Subscription) map[string]any {
	params := map[string]any{
		"renewal_date": formatDate(tag, sub.CurrentPeriodEnd),
	}
	if plan, ok := s.catalog.ByPriceID(sub.StripePriceID); ok {
		params["plan"] = plan.Name
		params["amount"] = plan.Price.Format(tag)
	} else {
		s.log.Warn("renewal for unknown price id", logger.SubscriptionID(sub.StripeSubscriptionID))
		params["plan"] = "current"
		params["amount"] = ""
	}
	return params
}

// dayBounds returns the UTC calendar day containing t as a half-open
// interval [start, start+24h).
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
