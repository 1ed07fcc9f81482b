package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route or retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers changes to member records.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication outcomes and session revocation.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// Subject is the affected entity: a member id or the admin username.
	Subject string `json:"subject"`
	Action  string `json:"action"`
	Reason  string `json:"reason,omitempty"`
	// ActorID is who performed the action, formatted as role:subject.
	ActorID   string `json:"actor_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	// Device is a short browser/OS summary parsed from the user agent.
	Device string `json:"device,omitempty"`
}

type AuditEvent string

const (
	// Member events
	EventMemberCreated         AuditEvent = "member_created"
	EventMemberUpdated         AuditEvent = "member_updated"
	EventPaymentStatusToggled  AuditEvent = "payment_status_toggled"
	EventDependentAdded        AuditEvent = "dependent_added"
	EventDependentRemoved      AuditEvent = "dependent_removed"
	EventDuplicateCPFRejected  AuditEvent = "duplicate_cpf_rejected"
	EventDashboardViewed       AuditEvent = "dashboard_viewed"
	EventReportGenerated       AuditEvent = "report_generated"
	EventAssociateRecordViewed AuditEvent = "associate_record_viewed"

	// Identity events
	EventAdminLoginSucceeded     AuditEvent = "admin_login_succeeded"
	EventAdminLoginFailed        AuditEvent = "admin_login_failed"
	EventAssociateLoginSucceeded AuditEvent = "associate_login_succeeded"
	EventAssociateLoginFailed    AuditEvent = "associate_login_failed"
	EventSessionRevoked          AuditEvent = "session_revoked"
	EventLoginThrottled          AuditEvent = "login_throttled"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventMemberCreated:        CategoryCompliance,
	EventMemberUpdated:        CategoryCompliance,
	EventPaymentStatusToggled: CategoryCompliance,
	EventDependentAdded:       CategoryCompliance,
	EventDependentRemoved:     CategoryCompliance,

	EventAdminLoginFailed:     CategorySecurity,
	EventAssociateLoginFailed: CategorySecurity,
	EventSessionRevoked:       CategorySecurity,
	EventLoginThrottled:       CategorySecurity,
	EventDuplicateCPFRejected: CategorySecurity,

	EventAdminLoginSucceeded:     CategoryOperations,
	EventAssociateLoginSucceeded: CategoryOperations,
	EventDashboardViewed:         CategoryOperations,
	EventReportGenerated:         CategoryOperations,
	EventAssociateRecordViewed:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by sinks that can be queried back.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
