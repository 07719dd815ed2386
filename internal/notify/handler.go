package notify

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Config carries the shared secret protecting the scan endpoint.
type Config struct {
	ScanSecret string `env:"NOTIFICATION_SCAN_SECRET,required"`
}

// ScanHandler exposes the scanner over HTTP for the daily cron job.
// The endpoint is authenticated with a static bearer token.
type ScanHandler struct {
	scanner *Scanner
	secret  string
	log     *slog.Logger
}

func NewScanHandler(scanner *Scanner, secret string, log *slog.Logger) *ScanHandler {
	if scanner == nil {
		panic("notify: scanner is required")
	}
	if secret == "" {
		panic("notify: scan secret is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ScanHandler{scanner: scanner, secret: secret, log: log}
}

func (h *ScanHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		res := h.scanner.Run(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			h.log.ErrorContext(r.Context(), "failed to write scan result", slog.Any("error", err))
		}
	}
}

func (h *ScanHandler) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
