package billing

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/physioflow/billing/pkg/logger"
)

// EntitlementResponse is the wire shape of an entitlement query.
type EntitlementResponse struct {
	HasActiveAccess   bool `json:"hasActiveAccess"`
	InGracePeriod     bool `json:"inGracePeriod"`
	DaysUntilTrialEnd *int `json:"daysUntilTrialEnd,omitempty"`
}

// EntitlementHandler serves entitlement queries to the web app over the
// internal network, authenticated with a static bearer token.
type EntitlementHandler struct {
	eval   *Evaluator
	secret string
	log    *slog.Logger
}

func NewEntitlementHandler(eval *Evaluator, secret string, log *slog.Logger) *EntitlementHandler {
	if eval == nil {
		panic("billing: evaluator is required")
	}
	if secret == "" {
		panic("billing: entitlement secret is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &EntitlementHandler{eval: eval, secret: secret, log: log}
}

// Handler serves GET /internal/entitlements/{user_id}.
func (h *EntitlementHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := r.Context()

		userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		resp := EntitlementResponse{}
		resp.HasActiveAccess, err = h.eval.HasActiveAccess(ctx, userID)
		if err == nil {
			resp.InGracePeriod, err = h.eval.IsInGracePeriod(ctx, userID)
		}
		if err == nil {
			resp.DaysUntilTrialEnd, err = h.eval.DaysUntilTrialEnd(ctx, userID)
		}
		if err != nil {
			h.log.ErrorContext(ctx, "entitlement query failed",
				logger.UserID(userID), logger.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			h.log.ErrorContext(ctx, "failed to write entitlement response", logger.Error(err))
		}
	}
}

func (h *EntitlementHandler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
