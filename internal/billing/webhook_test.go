package billing_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/physioflow/billing/internal/billing"
)

const webhookSecret = "whsec_test"

// signPayload produces a Stripe-Signature header the same way Stripe does:
// an HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, handler http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func eventPayload(eventType, data string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","api_version":%q,"type":%q,"data":{"object":%s}}`, stripe.APIVersion, eventType, data))
}

func newWebhookFixture(t *testing.T) (*syncFixture, http.Handler) {
	t.Helper()
	f := newSyncFixture(t)
	h := billing.NewWebhookHandler(webhookSecret, f.sync, f.tracker, nil)
	return f, h.Handler()
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	f, handler := newWebhookFixture(t)

	payload := eventPayload("customer.subscription.updated", `{"id":"sub_1"}`)

	rec := postWebhook(t, handler, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postWebhook(t, handler, payload, signPayload(payload, "whsec_other"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing ran, nothing flushed.
	assert.Zero(t, f.tracker.flushes)
}

func TestWebhookAcceptsUnrecognizedEvent(t *testing.T) {
	t.Parallel()

	f, handler := newWebhookFixture(t)

	payload := eventPayload("customer.updated", `{"id":"cus_1"}`)
	rec := postWebhook(t, handler, payload, signPayload(payload, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.tracker.flushes)
}

func TestWebhookProcessesSubscriptionUpdate(t *testing.T) {
	t.Parallel()

	f, handler := newWebhookFixture(t)

	payload := eventPayload("customer.subscription.updated", fmt.Sprintf(
		`{"id":"sub_1","customer":{"id":"cus_1"},"status":"active","current_period_start":%d,"current_period_end":%d}`,
		syncNow.AddDate(0, -1, 0).Unix(), syncNow.AddDate(0, 0, 14).Unix(),
	))
	rec := postWebhook(t, handler, payload, signPayload(payload, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)

	sub, err := f.subs.Find(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, sub.Status)
}

func TestWebhookHandlerFailureReturns500(t *testing.T) {
	t.Parallel()

	f, handler := newWebhookFixture(t)

	payload := eventPayload("customer.subscription.updated",
		`{"id":"sub_1","customer":{"id":"cus_1"},"status":"hibernating"}`)
	rec := postWebhook(t, handler, payload, signPayload(payload, webhookSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Analytics still flush even when the handler fails.
	assert.Equal(t, 1, f.tracker.flushes)
	_, err := f.subs.Find(context.Background(), f.user.ID)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
}

func TestWebhookFlushesBeforeResponding(t *testing.T) {
	t.Parallel()

	f := newSyncFixture(t)
	h := billing.NewWebhookHandler(webhookSecret, f.sync, f.tracker, nil).Handler()

	f.fetcher.subs["sub_1"] = stripeSub("cus_1", stripe.SubscriptionStatusActive)

	payload := eventPayload("checkout.session.completed", fmt.Sprintf(
		`{"id":"cs_1","metadata":{"user_id":%q},"customer":{"id":"cus_1"},"subscription":{"id":"sub_1"}}`,
		f.user.ID,
	))
	rec := postWebhook(t, h, payload, signPayload(payload, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.tracker.flushes)
	assert.Empty(t, f.tracker.events, "buffered events are drained by the flush")
	require.Len(t, f.tracker.flushed, 1)
	assert.Equal(t, billing.EventSubscriptionCompleted, f.tracker.flushed[0].Name)
}

func TestWebhookAcceptsLargePayload(t *testing.T) {
	t.Parallel()

	_, handler := newWebhookFixture(t)

	// An invoice event with many line items can easily exceed 64 KiB.
	padding := strings.Repeat("x", 100*1024)
	payload := eventPayload("invoice.payment_succeeded", fmt.Sprintf(
		`{"id":"in_1","customer":{"id":"cus_1"},"description":%q}`, padding))
	rec := postWebhook(t, handler, payload, signPayload(payload, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookUnknownUserCheckoutStillSucceeds(t *testing.T) {
	t.Parallel()

	_, handler := newWebhookFixture(t)

	payload := eventPayload("checkout.session.completed", fmt.Sprintf(
		`{"id":"cs_1","metadata":{"user_id":%q},"customer":{"id":"cus_9"},"subscription":{"id":"sub_9"}}`,
		uuid.New(),
	))
	rec := postWebhook(t, handler, payload, signPayload(payload, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
}
