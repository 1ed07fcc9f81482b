package testutil

import (
	"net/http"
	"time"

	"policardmed/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated caller to the request context,
// as the role guard middleware does after validating a session token.
func WithPrincipal(req *http.Request, role, subject string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), &requestcontext.Principal{
		Role:      role,
		Subject:   subject,
		TokenID:   "test-jti",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return req.WithContext(ctx)
}

// WithAdmin is WithPrincipal for the admin role.
func WithAdmin(req *http.Request) *http.Request {
	return WithPrincipal(req, "admin", "admin@policardmed.com")
}
