package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/billing/internal/billing"
	"github.com/physioflow/billing/internal/user"
)

var evalNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, role user.Role) (user.User, *user.MemoryStore) {
	t.Helper()
	u := user.User{
		ID:    uuid.New(),
		Email: "someone@example.com",
		Role:  role,
	}
	return u, user.NewMemoryStore(u)
}

func upsert(t *testing.T, subs *billing.MemoryStore, userID uuid.UUID, status billing.Status, periodEnd time.Time, trialEnd *time.Time) {
	t.Helper()
	require.NoError(t, subs.Upsert(context.Background(), billing.UpsertParams{
		UserID:           userID,
		Status:           status,
		CurrentPeriodEnd: periodEnd,
		TrialEnd:         trialEnd,
	}))
}

func TestHasActiveAccessAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown user denied without error", func(t *testing.T) {
		t.Parallel()

		eval := billing.NewEvaluator(user.NewMemoryStore(), billing.NewMemoryStore())
		ok, err := eval.HasActiveAccessAt(ctx, uuid.New(), evalNow)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("exempt roles skip billing", func(t *testing.T) {
		t.Parallel()

		for _, role := range []user.Role{user.RoleAdmin, user.RolePractitioner} {
			u, users := seedUser(t, role)
			eval := billing.NewEvaluator(users, billing.NewMemoryStore())

			ok, err := eval.HasActiveAccessAt(ctx, u.ID, evalNow)
			require.NoError(t, err)
			assert.True(t, ok, "role %s must not need a subscription", role)
		}
	})

	t.Run("patient without record denied", func(t *testing.T) {
		t.Parallel()

		u, users := seedUser(t, user.RolePatient)
		eval := billing.NewEvaluator(users, billing.NewMemoryStore())

		ok, err := eval.HasActiveAccessAt(ctx, u.ID, evalNow)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("patient status matrix", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			status billing.Status
			want   bool
		}{
			{billing.StatusTrialing, true},
			{billing.StatusActive, true},
			{billing.StatusCanceled, false},
			{billing.StatusUnpaid, false},
			{billing.StatusIncomplete, false},
		}
		for _, tt := range tests {
			u, users := seedUser(t, user.RolePatient)
			subs := billing.NewMemoryStore()
			upsert(t, subs, u.ID, tt.status, evalNow.AddDate(0, 1, 0), nil)
			eval := billing.NewEvaluator(users, subs)

			ok, err := eval.HasActiveAccessAt(ctx, u.ID, evalNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok, "status %s", tt.status)
		}
	})

	t.Run("past due honors grace boundary", func(t *testing.T) {
		t.Parallel()

		u, users := seedUser(t, user.RolePatient)
		subs := billing.NewMemoryStore()
		upsert(t, subs, u.ID, billing.StatusPastDue, evalNow, nil)
		eval := billing.NewEvaluator(users, subs)

		deadline := evalNow.Add(billing.GracePeriod)

		ok, err := eval.HasActiveAccessAt(ctx, u.ID, deadline)
		require.NoError(t, err)
		assert.True(t, ok, "access holds through the deadline itself")

		ok, err = eval.HasActiveAccessAt(ctx, u.ID, deadline.Add(time.Millisecond))
		require.NoError(t, err)
		assert.False(t, ok, "access ends immediately after the deadline")
	})
}

func TestDaysUntilTrialEndAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("trialing reports rounded up days", func(t *testing.T) {
		t.Parallel()

		u, users := seedUser(t, user.RolePatient)
		subs := billing.NewMemoryStore()
		trialEnd := evalNow.Add(36 * time.Hour)
		upsert(t, subs, u.ID, billing.StatusTrialing, trialEnd, &trialEnd)
		eval := billing.NewEvaluator(users, subs)

		days, err := eval.DaysUntilTrialEndAt(ctx, u.ID, evalNow)
		require.NoError(t, err)
		require.NotNil(t, days)
		assert.Equal(t, 2, *days)
	})

	t.Run("nil for non-trialing status", func(t *testing.T) {
		t.Parallel()

		u, users := seedUser(t, user.RolePatient)
		subs := billing.NewMemoryStore()
		trialEnd := evalNow.Add(36 * time.Hour)
		upsert(t, subs, u.ID, billing.StatusActive, trialEnd, &trialEnd)
		eval := billing.NewEvaluator(users, subs)

		days, err := eval.DaysUntilTrialEndAt(ctx, u.ID, evalNow)
		require.NoError(t, err)
		assert.Nil(t, days)
	})

	t.Run("nil without record", func(t *testing.T) {
		t.Parallel()

		u, users := seedUser(t, user.RolePatient)
		eval := billing.NewEvaluator(users, billing.NewMemoryStore())

		days, err := eval.DaysUntilTrialEndAt(ctx, u.ID, evalNow)
		require.NoError(t, err)
		assert.Nil(t, days)
	})
}

func TestIsInGracePeriodAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	u, users := seedUser(t, user.RolePatient)
	subs := billing.NewMemoryStore()
	upsert(t, subs, u.ID, billing.StatusPastDue, evalNow, nil)
	eval := billing.NewEvaluator(users, subs)

	ok, err := eval.IsInGracePeriodAt(ctx, u.ID, evalNow.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.IsInGracePeriodAt(ctx, u.ID, evalNow.Add(billing.GracePeriod).Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eval.IsInGracePeriodAt(ctx, uuid.New(), evalNow)
	require.NoError(t, err)
	assert.False(t, ok)
}
