package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/physioflow/billing/internal/billing"
)

func TestStatusFromStripe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stripe stripe.SubscriptionStatus
		want   billing.Status
	}{
		{stripe.SubscriptionStatusIncomplete, billing.StatusIncomplete},
		{stripe.SubscriptionStatusIncompleteExpired, billing.StatusIncompleteExpired},
		{stripe.SubscriptionStatusTrialing, billing.StatusTrialing},
		{stripe.SubscriptionStatusActive, billing.StatusActive},
		{stripe.SubscriptionStatusPastDue, billing.StatusPastDue},
		{stripe.SubscriptionStatusCanceled, billing.StatusCanceled},
		{stripe.SubscriptionStatusUnpaid, billing.StatusUnpaid},
		// Pause collection is not offered, so a paused subscription is
		// indistinguishable from a canceled one for entitlement purposes.
		{stripe.SubscriptionStatusPaused, billing.StatusCanceled},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.stripe), func(t *testing.T) {
			t.Parallel()

			got, err := billing.StatusFromStripe(tt.stripe)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusFromStripeUnmapped(t *testing.T) {
	t.Parallel()

	got, err := billing.StatusFromStripe(stripe.SubscriptionStatus("hibernating"))
	require.ErrorIs(t, err, billing.ErrUnmappedStatus)
	assert.Empty(t, got)
	assert.Contains(t, err.Error(), "hibernating")
}
