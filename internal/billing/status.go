package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v78"
)

// Status represents the local subscription state, mirroring Stripe's
// vocabulary except that paused subscriptions are treated as canceled.
type Status string

const (
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusTrialing          Status = "trialing"
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
)

// StatusFromStripe maps a Stripe subscription status to the local enum.
// The mapping is closed: a status outside the known set returns
// ErrUnmappedStatus, which callers must treat as fatal. Writing a guessed
// status would produce incorrect entitlement decisions, so coercion is
// never an option here.
func StatusFromStripe(s stripe.SubscriptionStatus) (Status, error) {
	switch s {
	case stripe.SubscriptionStatusIncomplete:
		return StatusIncomplete, nil
	case stripe.SubscriptionStatusIncompleteExpired:
		return StatusIncompleteExpired, nil
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing, nil
	case stripe.SubscriptionStatusActive:
		return StatusActive, nil
	case stripe.SubscriptionStatusPastDue:
		return StatusPastDue, nil
	case stripe.SubscriptionStatusCanceled:
		return StatusCanceled, nil
	case stripe.SubscriptionStatusUnpaid:
		return StatusUnpaid, nil
	case stripe.SubscriptionStatusPaused:
		// No pause feature on our side; a paused subscription does not
		// grant access, same as canceled.
		return StatusCanceled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnmappedStatus, s)
	}
}
