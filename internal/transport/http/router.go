// Package httptransport assembles the public HTTP surface from the module
// handlers and the shared middleware chain.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	identityhandler "policardmed/internal/identity/handler"
	memberhandler "policardmed/internal/member/handler"
	"policardmed/internal/platform/metrics"
	platformmw "policardmed/internal/platform/middleware"
	"policardmed/pkg/platform/middleware/admin"
	"policardmed/pkg/platform/middleware/auth"
	"policardmed/pkg/platform/middleware/metadata"
	"policardmed/pkg/platform/middleware/request"
	"policardmed/pkg/platform/middleware/requesttime"
)

const (
	roleAdmin     = "admin"
	roleAssociate = "associate"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Tokens   auth.TokenValidator
	Identity *identityhandler.Handler
	Members  *memberhandler.Handler
	Checks   map[string]HealthCheck
	OpsToken string

	// TrustedProxies may set forwarding headers; everyone else is keyed
	// by the connection's peer address.
	TrustedProxies []netip.Prefix
}

// NewRouter wires every endpoint. Login routes are public; admin and
// associate routes sit behind the role guard.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata(d.TrustedProxies))
	r.Use(requesttime.Middleware)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(platformmw.Latency(d.Metrics))
	}

	r.Get("/health", healthHandler(d.Checks))
	if d.Metrics != nil {
		r.With(admin.RequireOpsToken(d.OpsToken, d.Logger)).Handle("/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		d.Identity.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(d.Tokens, d.Logger, roleAdmin))
		d.Members.RegisterAdmin(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(d.Tokens, d.Logger, roleAssociate))
		d.Members.RegisterAssociate(r)
	})

	return r
}
