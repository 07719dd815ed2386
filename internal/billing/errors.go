package billing

import "errors"

var (
	// ErrSubscriptionNotFound is returned when no subscription record exists for a user.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrUnmappedStatus indicates a Stripe subscription status outside the
	// known mapping table. This is a programming/configuration error, never
	// coerced to a default.
	ErrUnmappedStatus = errors.New("unmapped stripe subscription status")
)
