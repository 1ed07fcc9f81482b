package service

import (
	"context"
	"time"

	"policardmed/internal/identity/models"
	dErrors "policardmed/pkg/domain-errors"
	"policardmed/pkg/platform/audit"
	"policardmed/pkg/requestcontext"
)

// FailureCounter counts failed logins per key over a sliding window.
type FailureCounter interface {
	Failures(ctx context.Context, key string, window time.Duration) (int, error)
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Clear(ctx context.Context, key string) error
}

type loginThrottle struct {
	counter     FailureCounter
	maxFailures int
	window      time.Duration
}

// WithLoginThrottle refuses logins from a client address once maxFailures
// failed attempts for the same role fall inside window. Associate lookups
// are keyed by address only so cpf enumeration is throttled too. The address
// is the one metadata.ClientMetadata resolved, so forwarding headers only
// count when they come from a configured trusted proxy.
func WithLoginThrottle(counter FailureCounter, maxFailures int, window time.Duration) Option {
	return func(s *Service) {
		if counter == nil || maxFailures <= 0 || window <= 0 {
			return
		}
		s.throttle = &loginThrottle{counter: counter, maxFailures: maxFailures, window: window}
	}
}

func throttleKey(ctx context.Context, role models.Role) string {
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		ip = "unknown"
	}
	return role.String() + "|" + ip
}

// checkThrottle fails open when the counter is unreachable.
func (s *Service) checkThrottle(ctx context.Context, role models.Role, key string) error {
	if s.throttle == nil {
		return nil
	}
	n, err := s.throttle.counter.Failures(ctx, key, s.throttle.window)
	if err != nil {
		s.logger.WarnContext(ctx, "login throttle unavailable",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil
	}
	if n < s.throttle.maxFailures {
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncrementLogin(role.String(), "throttled")
	}
	s.logAudit(ctx, audit.EventLoginThrottled, "", "role", role.String(), "failures", n)
	return dErrors.New(dErrors.CodeRateLimited, "too many failed login attempts, try again later")
}

// noteFailure counts credential failures only; validation and outage errors
// say nothing about the caller guessing.
func (s *Service) noteFailure(ctx context.Context, key string, err error) {
	if s.throttle == nil {
		return
	}
	if !dErrors.HasCode(err, dErrors.CodeUnauthorized) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return
	}
	if _, err := s.throttle.counter.RecordFailure(ctx, key, s.throttle.window); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure", "error", err)
	}
}

func (s *Service) clearFailures(ctx context.Context, key string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.counter.Clear(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to clear login failures", "error", err)
	}
}
