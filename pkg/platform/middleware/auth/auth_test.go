package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/requestcontext"
)

type stubValidator map[string]*requestcontext.Principal

func (s stubValidator) ValidateToken(_ context.Context, token string) (*requestcontext.Principal, error) {
	if token == "down" {
		return nil, dErrors.New(dErrors.CodeUnavailable, "revocation list unreachable")
	}
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

func TestRequireRole(t *testing.T) {
	validator := stubValidator{
		"admin-token":     {Role: "admin", Subject: "admin@policardmed.com"},
		"associate-token": {Role: "associate", Subject: "m1"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen *requestcontext.Principal
	handler := RequireRole(validator, logger, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestcontext.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(authz string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	t.Run("admin is admitted with principal in context", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve("Bearer admin-token"))
		assert.Equal(t, "admin@policardmed.com", seen.Subject)
	})

	t.Run("associate is forbidden on admin routes", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, serve("Bearer associate-token"))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(""))
	})

	t.Run("unknown token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer forged"))
	})

	t.Run("validator outage is 503", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, serve("Bearer down"))
	})
}
