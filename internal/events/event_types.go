package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRevoked   EventType = "token_revoked"
	EventAuthRejected   EventType = "auth_rejected"
	EventAccessDenied   EventType = "access_denied"
	EventTaskCreated    EventType = "task_created"
	EventTaskDeleted    EventType = "task_deleted"
)

// Event represents an audit-relevant occurrence emitted by the auth
// subsystem or the task service. SubjectID is empty when no identity was
// established (failed logins, rejected tokens).
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// AuthRejectedPayload payload for token-level rejections at the gate.
type AuthRejectedPayload struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// AccessDeniedPayload payload for decision-engine denials.
type AccessDeniedPayload struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Operation  string `json:"operation"`
	ResourceID string `json:"resource_id,omitempty"`
	Reason     string `json:"reason"`
	Rule       string `json:"rule"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

// TaskDeletedPayload payload.
type TaskDeletedPayload struct {
	TaskID string `json:"task_id"`
}
