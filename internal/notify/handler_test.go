package notify_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physioflow/billing/internal/billing"
	"github.com/physioflow/billing/internal/notify"
	"github.com/physioflow/billing/internal/user"
)

func newScanHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	scanner := notify.NewScanner(
		billing.NewMemoryStore(),
		user.NewMemoryStore(),
		&fakeDispatcher{},
		testCatalog(),
	)
	return notify.NewScanHandler(scanner, "scan-secret", nil).Handler()
}

func TestScanHandlerAuth(t *testing.T) {
	t.Parallel()

	handler := newScanHandler(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic scan-secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer scan-secret", want: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/internal/notifications/scan", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestScanHandlerResult(t *testing.T) {
	t.Parallel()

	handler := newScanHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/notifications/scan", nil)
	req.Header.Set("Authorization", "Bearer scan-secret")
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res notify.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Zero(t, res.TrialEndingCount)
	assert.Zero(t, res.TrialEndedCount)
	assert.Zero(t, res.RenewalCount)
	assert.Empty(t, res.Errors)
}
