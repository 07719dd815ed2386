package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/billing/internal/billing"
	"github.com/physioflow/billing/internal/notify"
	"github.com/physioflow/billing/internal/user"
)

// fakeDispatcher records every message and fails delivery for addresses
// listed in failFor.
type fakeDispatcher struct {
	mu      sync.Mutex
	sent    []notify.Message
	failFor map[string]bool
}

func (d *fakeDispatcher) Send(ctx context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	if d.failFor[msg.To] {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (d *fakeDispatcher) byTemplate(tpl notify.Template) []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Message
	for _, m := range d.sent {
		if m.Template == tpl {
			out = append(out, m)
		}
	}
	return out
}

var scanNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func testCatalog() billing.Catalog {
	return billing.NewCatalog(billing.CatalogConfig{
		MonthlyPriceID: "price_monthly",
		MonthlyAmount:  999,
		YearlyPriceID:  "price_yearly",
		YearlyAmount:   9900,
		Currency:       "EUR",
	})
}

func newTestUser(email string) user.User {
	return user.User{
		ID:    uuid.New(),
		Email: email,
		Role:  user.RolePatient,
	}
}

func seedSub(t *testing.T, subs *billing.MemoryStore, userID uuid.UUID, status billing.Status, trialEnd *time.Time, periodEnd time.Time) {
	t.Helper()
	require.NoError(t, subs.Upsert(context.Background(), billing.UpsertParams{
		UserID:               userID,
		StripeSubscriptionID: "sub_" + userID.String()[:8],
		StripeCustomerID:     "cus_" + userID.String()[:8],
		StripePriceID:        "price_monthly",
		Status:               status,
		CurrentPeriodStart:   scanNow.AddDate(0, -1, 0),
		CurrentPeriodEnd:     periodEnd,
		TrialEnd:             trialEnd,
	}))
}

func TestScannerRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	trialUser := newTestUser("trial@example.com")
	expiredUser := newTestUser("expired@example.com")
	renewUser := newTestUser("renew@example.com")

	users := user.NewMemoryStore(trialUser, expiredUser, renewUser)
	subs := billing.NewMemoryStore()

	trialEnd := scanNow.AddDate(0, 0, 3)
	seedSub(t, subs, trialUser.ID, billing.StatusTrialing, &trialEnd, scanNow.AddDate(0, 0, 3))

	expiredEnd := scanNow.Add(-2 * time.Hour)
	seedSub(t, subs, expiredUser.ID, billing.StatusIncompleteExpired, &expiredEnd, scanNow.Add(-2*time.Hour))

	seedSub(t, subs, renewUser.ID, billing.StatusActive, nil, scanNow.AddDate(0, 0, 7))

	dispatcher := &fakeDispatcher{}
	scanner := notify.NewScanner(subs, users, dispatcher, testCatalog(),
		notify.WithScanClock(func() time.Time { return scanNow }))

	res := scanner.Run(ctx)

	assert.Equal(t, 1, res.TrialEndingCount)
	assert.Equal(t, 1, res.TrialEndedCount)
	assert.Equal(t, 1, res.RenewalCount)
	assert.Empty(t, res.Errors)

	ending := dispatcher.byTemplate(notify.TemplateTrialEnding)
	require.Len(t, ending, 1)
	assert.Equal(t, "trial@example.com", ending[0].To)
	assert.Equal(t, 3, ending[0].Params["days"])

	renewals := dispatcher.byTemplate(notify.TemplateRenewalReminder)
	require.Len(t, renewals, 1)
	assert.Equal(t, "Monthly", renewals[0].Params["plan"])
	assert.NotEmpty(t, renewals[0].Params["amount"])
}

func TestScannerTrialEndingDayCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// The window always targets the calendar day three days out, but the
	// reported remainder depends on the exact distance: an early scan
	// against a late trial end rounds up to four days.
	tests := []struct {
		name     string
		now      time.Time
		trialEnd time.Time
		want     int
	}{
		{
			name:     "early scan, late trial end",
			now:      time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC),
			trialEnd: time.Date(2025, 3, 13, 23, 0, 0, 0, time.UTC),
			want:     4,
		},
		{
			name:     "late scan, early trial end",
			now:      time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC),
			trialEnd: time.Date(2025, 3, 13, 1, 0, 0, 0, time.UTC),
			want:     3,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := newTestUser("trial@example.com")
			users := user.NewMemoryStore(u)
			subs := billing.NewMemoryStore()
			trialEnd := tt.trialEnd
			seedSub(t, subs, u.ID, billing.StatusTrialing, &trialEnd, trialEnd)

			dispatcher := &fakeDispatcher{}
			scanner := notify.NewScanner(subs, users, dispatcher, testCatalog(),
				notify.WithScanClock(func() time.Time { return tt.now }))

			res := scanner.Run(ctx)
			require.Equal(t, 1, res.TrialEndingCount)

			ending := dispatcher.byTemplate(notify.TemplateTrialEnding)
			require.Len(t, ending, 1)
			assert.Equal(t, tt.want, ending[0].Params["days"])
		})
	}
}

func TestScannerRunPartialFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	a := newTestUser("a@example.com")
	b := newTestUser("b@example.com")
	c := newTestUser("c@example.com")
	users := user.NewMemoryStore(a, b, c)

	subs := billing.NewMemoryStore()
	trialEnd := scanNow.AddDate(0, 0, 3).Add(time.Hour)
	for _, id := range []uuid.UUID{a.ID, b.ID, c.ID} {
		end := trialEnd
		seedSub(t, subs, id, billing.StatusTrialing, &end, end)
	}

	dispatcher := &fakeDispatcher{failFor: map[string]bool{"b@example.com": true}}
	scanner := notify.NewScanner(subs, users, dispatcher, testCatalog(),
		notify.WithScanClock(func() time.Time { return scanNow }))

	res := scanner.Run(ctx)

	// The failing recipient is reported; the other two still get their
	// notification and the run completes.
	assert.Equal(t, 2, res.TrialEndingCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "smtp unavailable")
	assert.Len(t, dispatcher.byTemplate(notify.TemplateTrialEnding), 3)
}

func TestScannerWindowBounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	inside := newTestUser("inside@example.com")
	before := newTestUser("before@example.com")
	after := newTestUser("after@example.com")
	users := user.NewMemoryStore(inside, before, after)
	subs := billing.NewMemoryStore()

	// The scan targets the full calendar day three days out, regardless of
	// the time of day the scan runs.
	dayStart := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)

	insideEnd := dayStart.Add(23*time.Hour + 59*time.Minute)
	seedSub(t, subs, inside.ID, billing.StatusTrialing, &insideEnd, insideEnd)

	beforeEnd := dayStart.Add(-time.Second)
	seedSub(t, subs, before.ID, billing.StatusTrialing, &beforeEnd, beforeEnd)

	afterEnd := dayStart.AddDate(0, 0, 1)
	seedSub(t, subs, after.ID, billing.StatusTrialing, &afterEnd, afterEnd)

	dispatcher := &fakeDispatcher{}
	scanner := notify.NewScanner(subs, users, dispatcher, testCatalog(),
		notify.WithScanClock(func() time.Time { return scanNow }))

	res := scanner.Run(ctx)

	assert.Equal(t, 1, res.TrialEndingCount)
	ending := dispatcher.byTemplate(notify.TemplateTrialEnding)
	require.Len(t, ending, 1)
	assert.Equal(t, "inside@example.com", ending[0].To)
}

func TestScannerUnknownUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	users := user.NewMemoryStore()
	subs := billing.NewMemoryStore()

	orphanID := uuid.New()
	trialEnd := scanNow.AddDate(0, 0, 3)
	seedSub(t, subs, orphanID, billing.StatusTrialing, &trialEnd, trialEnd)

	dispatcher := &fakeDispatcher{}
	scanner := notify.NewScanner(subs, users, dispatcher, testCatalog(),
		notify.WithScanClock(func() time.Time { return scanNow }))

	res := scanner.Run(ctx)

	assert.Zero(t, res.TrialEndingCount)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, dispatcher.sent)
}

func TestScannerSkipsScheduledCancellations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	u := newTestUser("cancelling@example.com")
	users := user.NewMemoryStore(u)
	subs := billing.NewMemoryStore()

	require.NoError(t, subs.Upsert(ctx, billing.UpsertParams{
		UserID:             u.ID,
		StripePriceID:      "price_yearly",
		Status:             billing.StatusActive,
		CurrentPeriodStart: scanNow.AddDate(0, -12, 0),
		CurrentPeriodEnd:   scanNow.AddDate(0, 0, 7),
		CancelAtPeriodEnd:  true,
	}))

	dispatcher := &fakeDispatcher{}
	scanner := notify.NewScanner(subs, users, dispatcher, testCatalog(),
		notify.WithScanClock(func() time.Time { return scanNow }))

	res := scanner.Run(ctx)

	assert.Zero(t, res.RenewalCount)
	assert.Empty(t, dispatcher.sent)
}
