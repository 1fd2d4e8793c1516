package audit

import (
	"context"
	"time"

	id "registrar/pkg/domain"
)

// EventCategory drives retention and routing of audit events.
type EventCategory string

const (
	// CategoryCompliance covers account creation and privilege changes.
	// These are written fail-closed alongside the change they describe.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected submissions worth alerting on,
	// such as failed CAPTCHA challenges.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	Email     string
	RequestID string
	ClientIP  string
	Device    string
	// ActorID names the admin acting on someone else's account.
	ActorID string
}

type AuditEvent string

const (
	EventUserCreated           AuditEvent = "user_created"
	EventSuperuserBootstrapped AuditEvent = "superuser_bootstrapped"
	EventUserActivated         AuditEvent = "user_activated"
	EventCaptchaFailed         AuditEvent = "captcha_failed"
	EventRegistrationRejected  AuditEvent = "registration_rejected"
	EventChallengeIssued       AuditEvent = "captcha_challenge_issued"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserCreated:           CategoryCompliance,
	EventSuperuserBootstrapped: CategoryCompliance,
	EventUserActivated:         CategoryCompliance,

	EventCaptchaFailed: CategorySecurity,

	EventRegistrationRejected: CategoryOperations,
	EventChallengeIssued:      CategoryOperations,
}

// Category returns the category for e. Unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
