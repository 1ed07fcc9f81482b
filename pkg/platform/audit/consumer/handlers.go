package consumer

import (
	"context"
	"fmt"
	"log/slog"

	audit "policardmed/pkg/platform/audit"
)

// Persist writes every event it receives to store.
func Persist(store audit.Store) Handler {
	return HandlerFunc(func(ctx context.Context, event audit.Event) error {
		if err := store.Append(ctx, event); err != nil {
			return fmt.Errorf("persist %s event: %w", event.Category, err)
		}
		return nil
	})
}

// SecurityHandler raises a warning log for security events an operator should
// look at, then passes every event on.
type SecurityHandler struct {
	next   Handler
	logger *slog.Logger
}

func NewSecurityHandler(next Handler, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{next: next, logger: logger}
}

var alertActions = map[string]bool{
	string(audit.EventAdminLoginFailed):     true,
	string(audit.EventLoginThrottled):       true,
	string(audit.EventDuplicateCPFRejected): true,
}

func (h *SecurityHandler) Handle(ctx context.Context, event audit.Event) error {
	if alertActions[event.Action] {
		h.logger.WarnContext(ctx, "security audit event",
			"action", event.Action,
			"subject", event.Subject,
			"reason", event.Reason,
			"client_ip", event.ClientIP,
			"request_id", event.RequestID,
		)
	}
	return h.next.Handle(ctx, event)
}

// SampledHandler forwards only the events the sampler keeps. Used for
// high-volume operations events such as dashboard views.
type SampledHandler struct {
	next    Handler
	sampler *Sampler
}

func NewSampledHandler(next Handler, sampler *Sampler) *SampledHandler {
	return &SampledHandler{next: next, sampler: sampler}
}

func (h *SampledHandler) Handle(ctx context.Context, event audit.Event) error {
	if !h.sampler.ShouldSample(event.Action) {
		return nil
	}
	return h.next.Handle(ctx, event)
}
