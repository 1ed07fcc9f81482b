// Package admin guards operational endpoints with a static shared token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"policardmed/pkg/requestcontext"
)

// RequireOpsToken rejects requests whose X-Ops-Token header does not match
// expectedToken. An empty expectedToken leaves the route open.
func RequireOpsToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Ops-Token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "ops token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"ops token required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
