package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks MemberStore,AuditPublisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"policardmed/internal/member/metrics"
	"policardmed/internal/member/models"
	"policardmed/pkg/attrs"
	id "policardmed/pkg/domain"
	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/platform/audit"
	"policardmed/pkg/platform/sentinel"
	"policardmed/pkg/requestcontext"
)

// MemberStore is the member repository contract. Implementations return
// sentinel errors (optionally wrapped); none offer compare-and-swap.
type MemberStore interface {
	Insert(ctx context.Context, member *models.Member) (id.MemberID, error)
	FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	FindByCPF(ctx context.Context, cpf string) ([]*models.Member, error)
	List(ctx context.Context) ([]*models.Member, error)
	Patch(ctx context.Context, memberID id.MemberID, patch models.Patch) error
	Subscribe(ctx context.Context) (<-chan models.Snapshot, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns member validation and the derived-state rules. Reads and
// writes are plain store calls: concurrent admins race with last-writer-wins.
type Service struct {
	members        MemberStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	retryDelay     time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(members MemberStore, opts ...Option) *Service {
	s := &Service{
		members:    members,
		logger:     slog.Default(),
		tracer:     otel.Tracer("policardmed/internal/member/service"),
		retryDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateMember validates params, rejects an already registered cpf and
// inserts the member with its derived creation state. The duplicate check and
// the insert are separate store calls; stores with a unique cpf index report a
// lost race as a conflict, which is surfaced the same way.
func (s *Service) CreateMember(ctx context.Context, params models.NewMemberParams) (*models.Member, error) {
	ctx, span := s.startSpan(ctx, "CreateMember")
	defer span.End()
	defer s.observe("create_member", time.Now())

	m, err := models.NewMember(params, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	existing, err := s.members.FindByCPF(ctx, m.CPF)
	if err != nil {
		return nil, s.spanError(span, translateStoreError(err, "failed to check cpf"))
	}
	if len(existing) > 0 {
		return nil, s.rejectDuplicate(ctx, existing[0].ID)
	}

	memberID, err := s.members.Insert(ctx, m)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.rejectDuplicate(ctx, "")
		}
		return nil, s.spanError(span, translateStoreError(err, "failed to create member"))
	}
	m.ID = memberID
	span.SetAttributes(attribute.String("member.id", memberID.String()))

	s.logAudit(ctx, audit.EventMemberCreated, memberID,
		"plan_type", string(m.PlanDetails.Type))
	if s.metrics != nil {
		s.metrics.IncrementMembersCreated()
	}
	return m, nil
}

func (s *Service) rejectDuplicate(ctx context.Context, existing id.MemberID) error {
	if s.metrics != nil {
		s.metrics.IncrementDuplicateRejections()
	}
	s.logAudit(ctx, audit.EventDuplicateCPFRejected, existing, "reason", "cpf_already_registered")
	return dErrors.New(dErrors.CodeConflict, "cpf already registered")
}

// UpdateMember applies a partial update. cpf, the plan window and createdAt
// are outside the patch surface and planEndDate is never recomputed.
func (s *Service) UpdateMember(ctx context.Context, memberID id.MemberID, patch models.Patch) (*models.Member, error) {
	ctx, span := s.startSpan(ctx, "UpdateMember", attribute.String("member.id", memberID.String()))
	defer span.End()
	defer s.observe("update_member", time.Now())

	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}

	m, err := s.load(ctx, memberID)
	if err != nil {
		return nil, s.spanError(span, err)
	}
	if patch.IsEmpty() {
		return m, nil
	}

	patch.UpdatedAt = requestcontext.Now(ctx)
	if err := s.members.Patch(ctx, memberID, patch); err != nil {
		return nil, s.spanError(span, translateStoreError(err, "failed to update member"))
	}
	m.Apply(patch)

	s.logAudit(ctx, audit.EventMemberUpdated, memberID)
	return m, nil
}

// TogglePaymentStatus flips em_dia and em_debito. The read and the write are
// not atomic; a concurrent edit between them can be lost.
func (s *Service) TogglePaymentStatus(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	ctx, span := s.startSpan(ctx, "TogglePaymentStatus", attribute.String("member.id", memberID.String()))
	defer span.End()
	defer s.observe("toggle_payment_status", time.Now())

	m, err := s.load(ctx, memberID)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	patch := models.PaymentStatusPatch(m.PaymentStatus.Toggled(), requestcontext.Now(ctx))
	if err := s.members.Patch(ctx, memberID, patch); err != nil {
		return nil, s.spanError(span, translateStoreError(err, "failed to update payment status"))
	}
	m.Apply(patch)

	s.logAudit(ctx, audit.EventPaymentStatusToggled, memberID,
		"payment_status", string(m.PaymentStatus))
	if s.metrics != nil {
		s.metrics.IncrementPaymentToggle(string(m.PaymentStatus))
	}
	return m, nil
}

// AddDependent loads the member, appends the dependent and persists the new
// sequence. Blank input is a silent no-op: nothing is written.
func (s *Service) AddDependent(ctx context.Context, memberID id.MemberID, name, relationship string) (*models.Member, error) {
	ctx, span := s.startSpan(ctx, "AddDependent", attribute.String("member.id", memberID.String()))
	defer span.End()

	m, err := s.load(ctx, memberID)
	if err != nil {
		return nil, s.spanError(span, err)
	}
	updated := models.AddDependent(m, name, relationship)
	if len(updated.Dependents) == len(m.Dependents) {
		return m, nil
	}
	if err := s.persistDependents(ctx, updated); err != nil {
		return nil, s.spanError(span, err)
	}
	s.logAudit(ctx, audit.EventDependentAdded, memberID)
	return updated, nil
}

// RemoveDependent loads the member, drops the dependent at index and persists
// the new sequence. An index out of range writes nothing.
func (s *Service) RemoveDependent(ctx context.Context, memberID id.MemberID, index int) (*models.Member, error) {
	ctx, span := s.startSpan(ctx, "RemoveDependent", attribute.String("member.id", memberID.String()))
	defer span.End()

	m, err := s.load(ctx, memberID)
	if err != nil {
		return nil, s.spanError(span, err)
	}
	updated := models.RemoveDependent(m, index)
	if len(updated.Dependents) == len(m.Dependents) {
		return m, nil
	}
	if err := s.persistDependents(ctx, updated); err != nil {
		return nil, s.spanError(span, err)
	}
	s.logAudit(ctx, audit.EventDependentRemoved, memberID, "index", index)
	return updated, nil
}

func (s *Service) persistDependents(ctx context.Context, m *models.Member) error {
	patch := models.DependentsPatch(m.Dependents, requestcontext.Now(ctx))
	if err := s.members.Patch(ctx, m.ID, patch); err != nil {
		return translateStoreError(err, "failed to update dependents")
	}
	m.UpdatedAt = patch.UpdatedAt
	return nil
}

func (s *Service) GetMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	ctx, span := s.startSpan(ctx, "GetMember", attribute.String("member.id", memberID.String()))
	defer span.End()
	m, err := s.load(ctx, memberID)
	if err != nil {
		return nil, s.spanError(span, err)
	}
	return m, nil
}

// GetOwnRecord is GetMember for an associate reading their own record.
func (s *Service) GetOwnRecord(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAssociateRecordViewed, memberID)
	return m, nil
}

// ListMembers returns a one-shot snapshot of every member.
func (s *Service) ListMembers(ctx context.Context) ([]*models.Member, error) {
	ctx, span := s.startSpan(ctx, "ListMembers")
	defer span.End()
	defer s.observe("list_members", time.Now())

	members, err := s.members.List(ctx)
	if err != nil {
		return nil, s.spanError(span, translateStoreError(err, "failed to list members"))
	}
	return members, nil
}

// Dashboard computes the aggregate statistics over a fresh snapshot.
func (s *Service) Dashboard(ctx context.Context) (models.Stats, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	stats := models.ComputeDashboardStats(members, requestcontext.Now(ctx))
	s.logAudit(ctx, audit.EventDashboardViewed, "", "active_members", stats.ActiveMembers)
	return stats, nil
}

// Report lists the members behind one of the dashboard counters.
func (s *Service) Report(ctx context.Context, kind models.ReportKind) ([]*models.Member, error) {
	members, err := s.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := models.FilterReport(members, kind, requestcontext.Now(ctx))
	s.logAudit(ctx, audit.EventReportGenerated, "", "report", string(kind), "count", len(out))
	return out, nil
}

// Subscribe relays the store's live snapshots. Snapshot errors are translated
// into domain errors; a snapshot carrying an error is the last one. The
// returned channel closes when ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context) (<-chan models.Snapshot, error) {
	in, err := s.members.Subscribe(ctx)
	if err != nil {
		return nil, translateStoreError(err, "failed to subscribe to members")
	}
	out := make(chan models.Snapshot)
	if s.metrics != nil {
		s.metrics.ActiveSubscriptions.Inc()
	}
	go func() {
		defer close(out)
		defer func() {
			if s.metrics != nil {
				s.metrics.ActiveSubscriptions.Dec()
			}
		}()
		for snap := range in {
			if snap.Err != nil {
				snap.Err = translateStoreError(snap.Err, "member subscription failed")
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// TrackStats keeps the dashboard gauges current from live snapshots until ctx
// is cancelled. A failed subscription is retried after retryDelay.
func (s *Service) TrackStats(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	for {
		snapshots, err := s.Subscribe(ctx)
		if err == nil {
			for snap := range snapshots {
				if snap.Err != nil {
					err = snap.Err
					break
				}
				s.metrics.RecordStats(models.ComputeDashboardStats(snap.Members, requestcontext.Now(ctx)))
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.logger.WarnContext(ctx, "member stats subscription failed, retrying",
				"error", err,
				"retry_in", s.retryDelay,
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Service) load(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load member")
	}
	return m, nil
}

// translateStoreError maps store sentinels onto domain error codes.
func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "cpf already registered")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "member repository unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) startSpan(ctx context.Context, op string, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "member."+op, trace.WithAttributes(kv...))
}

func (s *Service) spanError(span trace.Span, err error) error {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	return err
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, memberID id.MemberID, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "member_id", memberID.String(), "actor", requestcontext.Actor(ctx), "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   memberID.String(),
		Action:    string(event),
		Reason:    attrs.ExtractString(attributes, "reason"),
		ActorID:   requestcontext.Actor(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	})
}
