package user_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/billing/internal/user"
)

func TestMemoryStoreLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	u := user.User{
		ID:     uuid.New(),
		Email:  "patient@example.com",
		Role:   user.RolePatient,
		Locale: "nl",
	}
	store := user.NewMemoryStore(u)

	got, err := store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = store.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	// No customer id assigned yet.
	_, err = store.FindByStripeCustomerID(ctx, "cus_1")
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	require.NoError(t, store.SetStripeCustomerID(ctx, u.ID, "cus_1"))

	got, err = store.FindByStripeCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	err = store.SetStripeCustomerID(ctx, uuid.New(), "cus_2")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestPreferredLocale(t *testing.T) {
	t.Parallel()

	u := user.User{Locale: "de"}
	assert.Equal(t, "de", u.PreferredLocale())

	u.Locale = ""
	assert.Equal(t, user.DefaultLocale, u.PreferredLocale())
}
