package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/physioflow/billing/pkg/logger"
)

// maxWebhookBody caps inbound payload size. Stripe events are small, but
// invoices with many line items can grow; 1 MiB leaves generous headroom
// while still bounding a hostile request.
const maxWebhookBody = 1 << 20

// WebhookHandler terminates the Stripe webhook endpoint: it verifies the
// request signature against the shared secret, routes the event to the
// synchronizer, and flushes buffered analytics events before answering.
//
// Response contract: 400 for an unverifiable request (nothing is touched),
// 200 for processed and for unrecognized event types, 5xx for a handler
// failure so Stripe redelivers.
type WebhookHandler struct {
	secret  string
	sync    *Synchronizer
	tracker Tracker
	log     *slog.Logger
}

func NewWebhookHandler(secret string, sync *Synchronizer, tracker Tracker, log *slog.Logger) *WebhookHandler {
	if secret == "" {
		panic("billing: webhook secret is required")
	}
	if sync == nil {
		panic("billing: synchronizer is required")
	}
	if tracker == nil {
		tracker = NoopTracker{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{secret: secret, sync: sync, tracker: tracker, log: log}
}

// Handler returns the http.Handler for POST /webhooks/stripe.
func (h *WebhookHandler) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
		if err != nil {
			h.log.WarnContext(ctx, "webhook signature verification failed", logger.Error(err))
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		handleErr := h.dispatch(ctx, event)

		// Flush before the response goes out so event loss on a process
		// restart is bounded to the current request.
		if err := h.tracker.Flush(ctx); err != nil {
			h.log.ErrorContext(ctx, "failed to flush analytics events", logger.Error(err))
		}

		if handleErr != nil {
			h.log.ErrorContext(ctx, "webhook handler failed",
				logger.EventType(string(event.Type)), logger.Error(handleErr))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}

func (h *WebhookHandler) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to parse checkout session: %w", err)
		}
		return h.sync.HandleCheckoutCompleted(ctx, session)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return h.sync.HandleSubscriptionUpsert(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		return h.sync.HandleSubscriptionDeleted(ctx, &sub)

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return h.sync.HandleInvoicePaymentSucceeded(ctx, &inv)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		return h.sync.HandleInvoicePaymentFailed(ctx, &inv)

	default:
		// Not an error: the endpoint subscribes to a broader event set
		// than it consumes.
		h.log.DebugContext(ctx, "unhandled webhook event type",
			logger.EventType(string(event.Type)))
		return nil
	}
}
