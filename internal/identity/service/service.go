package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks MemberLookup,RevocationList,AuditPublisher

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"policardmed/internal/identity/device"
	"policardmed/internal/identity/metrics"
	"policardmed/internal/identity/models"
	"policardmed/internal/identity/token"
	memberModels "policardmed/internal/member/models"
	"policardmed/pkg/attrs"
	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/platform/audit"
	"policardmed/pkg/requestcontext"
)

// MemberLookup is the slice of the member repository the gate reads.
type MemberLookup interface {
	FindByCPF(ctx context.Context, cpf string) ([]*memberModels.Member, error)
}

// RevocationList records logged-out token IDs until they expire.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AdminCredentials is the single configured admin account.
type AdminCredentials struct {
	Username     string
	PasswordHash []byte
}

// NewAdminCredentials uses passwordHash when set and otherwise hashes the
// plain development password.
func NewAdminCredentials(username, passwordHash, plainPassword string) (AdminCredentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AdminCredentials{}, dErrors.New(dErrors.CodeValidation, "admin username is required")
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return AdminCredentials{}, dErrors.Wrap(err, dErrors.CodeValidation, "admin password hash is not a bcrypt hash")
		}
		return AdminCredentials{Username: username, PasswordHash: []byte(passwordHash)}, nil
	}
	if plainPassword == "" {
		return AdminCredentials{}, dErrors.New(dErrors.CodeValidation, "admin password or password hash is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return AdminCredentials{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash admin password")
	}
	return AdminCredentials{Username: username, PasswordHash: hash}, nil
}

// Service resolves callers into admin, associate or nobody and manages the
// session tokens that carry that decision between requests.
type Service struct {
	members        MemberLookup
	tokens         *token.JWTService
	revocations    RevocationList
	admin          AdminCredentials
	tokenTTL       time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	throttle       *loginThrottle
}

type Option func(*Service)

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

// WithTokenTTL overrides the default eight hour session lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func New(members MemberLookup, tokens *token.JWTService, revocations RevocationList, admin AdminCredentials, opts ...Option) *Service {
	s := &Service{
		members:     members,
		tokens:      tokens,
		revocations: revocations,
		admin:       admin,
		tokenTTL:    8 * time.Hour,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthenticateAdmin checks the pair against the configured account. The
// password hash is compared even when the username is wrong.
func (s *Service) AuthenticateAdmin(ctx context.Context, username, password string) (*models.AdminIdentity, error) {
	username = strings.TrimSpace(username)
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.admin.PasswordHash, []byte(password))
	if !userOK || passErr != nil {
		s.recordLogin(ctx, models.RoleAdmin, false, audit.EventAdminLoginFailed, username, "reason", "invalid_credentials")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid admin credentials")
	}
	return &models.AdminIdentity{Username: s.admin.Username}, nil
}

// AuthenticateAssociate resolves a cpf to the first matching member. A
// repository failure is reported as unavailable, never as not found.
func (s *Service) AuthenticateAssociate(ctx context.Context, cpf string) (*models.MemberIdentity, error) {
	cpf = strings.TrimSpace(cpf)
	if cpf == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "cpf is required")
	}
	found, err := s.members.FindByCPF(ctx, cpf)
	if err != nil {
		s.logger.ErrorContext(ctx, "associate lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		s.recordLogin(ctx, models.RoleAssociate, false, audit.EventAssociateLoginFailed, "", "reason", "lookup_failed")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "member lookup failed")
	}
	if len(found) == 0 {
		s.recordLogin(ctx, models.RoleAssociate, false, audit.EventAssociateLoginFailed, "", "reason", "not_found")
		return nil, dErrors.New(dErrors.CodeNotFound, "no member registered for this cpf")
	}
	m := found[0]
	return &models.MemberIdentity{MemberID: m.ID, Name: m.PrimaryMemberName}, nil
}

// LoginAdmin authenticates and issues an admin session.
func (s *Service) LoginAdmin(ctx context.Context, username, password string) (*models.Session, error) {
	key := throttleKey(ctx, models.RoleAdmin)
	if err := s.checkThrottle(ctx, models.RoleAdmin, key); err != nil {
		return nil, err
	}
	admin, err := s.AuthenticateAdmin(ctx, username, password)
	if err != nil {
		s.noteFailure(ctx, key, err)
		return nil, err
	}
	s.clearFailures(ctx, key)
	session, err := s.issue(ctx, models.RoleAdmin, admin.Username, admin.Username)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, models.RoleAdmin, true, audit.EventAdminLoginSucceeded, admin.Username)
	return session, nil
}

// LoginAssociate resolves the cpf and issues an associate session whose
// subject is the member id.
func (s *Service) LoginAssociate(ctx context.Context, cpf string) (*models.Session, error) {
	key := throttleKey(ctx, models.RoleAssociate)
	if err := s.checkThrottle(ctx, models.RoleAssociate, key); err != nil {
		return nil, err
	}
	member, err := s.AuthenticateAssociate(ctx, cpf)
	if err != nil {
		s.noteFailure(ctx, key, err)
		return nil, err
	}
	s.clearFailures(ctx, key)
	session, err := s.issue(ctx, models.RoleAssociate, member.MemberID.String(), member.Name)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, models.RoleAssociate, true, audit.EventAssociateLoginSucceeded, member.MemberID.String())
	return session, nil
}

func (s *Service) issue(ctx context.Context, role models.Role, subject, name string) (*models.Session, error) {
	fingerprint := device.Fingerprint(requestcontext.UserAgent(ctx))
	signed, claims, err := s.tokens.Issue(role, subject, fingerprint, requestcontext.Now(ctx), s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		Token:     signed,
		TokenID:   claims.ID,
		Role:      role,
		Subject:   subject,
		Name:      name,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ValidateToken verifies signature, expiry and revocation and returns the
// caller. A session seen from a different device is logged, not rejected.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*requestcontext.Principal, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		s.rejectToken("invalid")
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check token revocation")
	}
	if revoked {
		s.rejectToken("revoked")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
	}
	if device.Drifted(claims.Fingerprint, device.Fingerprint(requestcontext.UserAgent(ctx))) {
		s.logger.WarnContext(ctx, "session used from a different device",
			"request_id", requestcontext.RequestID(ctx),
			"role", string(claims.Role),
			"jti", claims.ID,
		)
		if s.metrics != nil {
			s.metrics.DeviceDrift.Inc()
		}
	}
	return &requestcontext.Principal{
		Role:      claims.Role.String(),
		Subject:   claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	principal, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := principal.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.RevokeToken(ctx, principal.TokenID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to revoke session")
	}
	if s.metrics != nil {
		s.metrics.Logouts.Inc()
	}
	ctx = requestcontext.WithPrincipal(ctx, principal)
	s.logAudit(ctx, audit.EventSessionRevoked, principal.Subject, "role", principal.Role)
	return nil
}

func (s *Service) rejectToken(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementTokenRejection(reason)
	}
}

func (s *Service) recordLogin(ctx context.Context, role models.Role, ok bool, event audit.AuditEvent, subject string, attributes ...any) {
	if s.metrics != nil {
		outcome := "failure"
		if ok {
			outcome = "success"
		}
		s.metrics.IncrementLogin(role.String(), outcome)
	}
	s.logAudit(ctx, event, subject, attributes...)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, subject string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "subject", subject, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   subject,
		Action:    string(event),
		Reason:    attrs.ExtractString(attributes, "reason"),
		ActorID:   requestcontext.Actor(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
	})
}
