// Package requesttime pins one "now" per request so every timestamp and date
// window computed while serving it agrees.
package requesttime

import (
	"net/http"
	"time"

	"policardmed/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
