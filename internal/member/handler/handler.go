package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"policardmed/internal/member/models"
	id "policardmed/pkg/domain"
	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/platform/httputil"
	"policardmed/pkg/requestcontext"
)

// Service defines the membership operations the HTTP layer needs.
type Service interface {
	CreateMember(ctx context.Context, params models.NewMemberParams) (*models.Member, error)
	UpdateMember(ctx context.Context, memberID id.MemberID, patch models.Patch) (*models.Member, error)
	TogglePaymentStatus(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	AddDependent(ctx context.Context, memberID id.MemberID, name, relationship string) (*models.Member, error)
	RemoveDependent(ctx context.Context, memberID id.MemberID, index int) (*models.Member, error)
	GetMember(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	GetOwnRecord(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	ListMembers(ctx context.Context) ([]*models.Member, error)
	Dashboard(ctx context.Context) (models.Stats, error)
	Report(ctx context.Context, kind models.ReportKind) ([]*models.Member, error)
	Subscribe(ctx context.Context) (<-chan models.Snapshot, error)
}

// Handler exposes member administration and the associate self-view.
type Handler struct {
	service   Service
	logger    *slog.Logger
	keepAlive time.Duration
}

// New constructs a member handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		keepAlive: 25 * time.Second,
	}
}

// RegisterAdmin mounts the admin routes. The caller applies the role guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/members", h.HandleList)
	r.Post("/admin/members", h.HandleCreate)
	r.Get("/admin/members/stream", h.HandleStream)
	r.Get("/admin/members/{id}", h.HandleGet)
	r.Patch("/admin/members/{id}", h.HandleUpdate)
	r.Post("/admin/members/{id}/payment-status/toggle", h.HandleTogglePayment)
	r.Post("/admin/members/{id}/dependents", h.HandleAddDependent)
	r.Delete("/admin/members/{id}/dependents/{index}", h.HandleRemoveDependent)
	r.Get("/admin/dashboard", h.HandleDashboard)
	r.Get("/admin/reports/{kind}", h.HandleReport)
}

// RegisterAssociate mounts the associate self-service routes.
func (h *Handler) RegisterAssociate(r chi.Router) {
	r.Get("/associate/me", h.HandleMe)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := h.service.ListMembers(ctx)
	if err != nil {
		h.fail(w, r, "failed to list members", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, toMemberList(members))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.CreateMember(ctx, req.ToParams())
	if err != nil {
		h.fail(w, r, "failed to create member", err)
		return
	}

	h.logger.InfoContext(ctx, "member created",
		"request_id", requestID,
		"member_id", m.ID,
	)
	httputil.WriteJSON(w, r, http.StatusCreated, m)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	m, err := h.service.GetMember(r.Context(), memberID)
	if err != nil {
		h.fail(w, r, "failed to get member", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, m)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateMemberRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	m, err := h.service.UpdateMember(ctx, memberID, req.ToPatch(requestcontext.Now(ctx)))
	if err != nil {
		h.fail(w, r, "failed to update member", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, m)
}

func (h *Handler) HandleTogglePayment(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	m, err := h.service.TogglePaymentStatus(r.Context(), memberID)
	if err != nil {
		h.fail(w, r, "failed to toggle payment status", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, m)
}

func (h *Handler) HandleAddDependent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddDependentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	m, err := h.service.AddDependent(ctx, memberID, req.Name, req.Relationship)
	if err != nil {
		h.fail(w, r, "failed to add dependent", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, m)
}

func (h *Handler) HandleRemoveDependent(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeBadRequest, "dependent index must be an integer"))
		return
	}
	m, err := h.service.RemoveDependent(r.Context(), memberID, index)
	if err != nil {
		h.fail(w, r, "failed to remove dependent", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, m)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Dashboard(ctx)
	if err != nil {
		h.fail(w, r, "failed to compute dashboard", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, &DashboardResponse{
		Stats:       stats,
		GeneratedAt: requestcontext.Now(ctx),
	})
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, err := models.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	members, err := h.service.Report(ctx, kind)
	if err != nil {
		h.fail(w, r, "failed to generate report", err)
		return
	}
	list := toMemberList(members)
	httputil.WriteJSON(w, r, http.StatusOK, &ReportResponse{
		Kind:        kind,
		GeneratedAt: requestcontext.Now(ctx),
		Count:       list.Count,
		Members:     list.Members,
	})
}

// HandleMe returns the calling associate's own record.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	memberID, err := id.ParseMemberID(principal.Subject)
	if err != nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "invalid session subject"))
		return
	}
	m, err := h.service.GetOwnRecord(ctx, memberID)
	if err != nil {
		h.fail(w, r, "failed to load associate record", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, m)
}

func (h *Handler) memberID(w http.ResponseWriter, r *http.Request) (id.MemberID, bool) {
	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return "", false
	}
	return memberID, true
}

// fail logs at warn for client errors and error otherwise, then writes err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, r, err)
}
