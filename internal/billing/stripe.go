package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeConfig holds Stripe API credentials.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// NewStripeClient constructs an explicit Stripe API client. The client is
// injected wherever the processor is called; nothing in this package uses
// the SDK's global key.
func NewStripeClient(cfg StripeConfig) *client.API {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return api
}

// SubscriptionFetcher retrieves full subscription state from the payment
// processor. Checkout completion events carry only a subscription id, so
// the synchronizer backfills the rest through this interface.
type SubscriptionFetcher interface {
	Subscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type stripeFetcher struct {
	api *client.API
}

// NewSubscriptionFetcher wraps a Stripe client as a SubscriptionFetcher.
func NewSubscriptionFetcher(api *client.API) SubscriptionFetcher {
	return &stripeFetcher{api: api}
}

func (f *stripeFetcher) Subscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := f.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve subscription %s: %w", id, err)
	}
	return sub, nil
}
