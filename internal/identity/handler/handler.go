package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"policardmed/internal/identity/models"
	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/platform/httputil"
	"policardmed/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	LoginAdmin(ctx context.Context, username, password string) (*models.Session, error)
	LoginAssociate(ctx context.Context, cpf string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
}

// Handler serves the login and logout endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public identity routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/admin/login", h.HandleAdminLogin)
	r.Post("/auth/associate/login", h.HandleAssociateLogin)
	r.Post("/auth/logout", h.HandleLogout)
}

func (h *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AdminLoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	session, err := h.service.LoginAdmin(ctx, req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "admin login rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) HandleAssociateLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AssociateLoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	session, err := h.service.LoginAssociate(ctx, req.CPF)
	if err != nil {
		level := slog.LevelWarn
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "associate login rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, toSessionResponse(session))
}

// HandleLogout revokes the bearer token presented with the request.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || tokenString == "" {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
		return
	}
	if err := h.service.Logout(ctx, tokenString); err != nil {
		h.logger.WarnContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
