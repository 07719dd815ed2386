package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no user matches the lookup key.
var ErrUserNotFound = errors.New("user not found")

// Store defines user persistence as consumed by the billing core.
type Store interface {
	// FindByID retrieves a user by local id.
	// Returns ErrUserNotFound if no user exists.
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// FindByStripeCustomerID resolves a user by the payment processor's
	// customer id. Returns ErrUserNotFound for unknown customers; webhook
	// handlers treat that as a benign no-op.
	FindByStripeCustomerID(ctx context.Context, customerID string) (*User, error)

	// SetStripeCustomerID persists the processor customer id on the user.
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}
