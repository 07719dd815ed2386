package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/physioflow/billing/pkg/logger"
)

// HealthCheckHandler builds a probe endpoint from dependency checks.
//
// With no checks the handler is a liveness probe and always answers
// 200 "ALIVE". With checks it is a readiness probe: all checks must pass
// for 200 "READY"; the first failure short-circuits to 500 "NOT_READY"
// and logs the cause.
func HealthCheckHandler(ctx context.Context, log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if len(checks) == 0 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ALIVE"))
			return
		}

		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "dependency check failed", logger.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}
