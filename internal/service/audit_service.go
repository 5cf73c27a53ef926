package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/events"
)

// auditedEvents lists every event type the audit trail records. Deny and
// reject outcomes are included so no failure path goes unlogged.
var auditedEvents = []events.EventType{
	events.EventUserRegistered,
	events.EventLoginSucceeded,
	events.EventLoginFailed,
	events.EventTokenRevoked,
	events.EventAuthRejected,
	events.EventAccessDenied,
	events.EventTaskCreated,
	events.EventTaskDeleted,
}

// AuditService writes one structured log line per audited event.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService builds the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes the audit trail to all audited event types.
func (s *AuditService) RegisterHandlers() {
	for _, eventType := range auditedEvents {
		s.dispatcher.Subscribe(eventType, s.record)
	}
}

func (s *AuditService) record(_ context.Context, event events.Event) error {
	s.logger.Info("audit event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.Time("timestamp", event.Timestamp),
		zap.Any("payload", event.Payload),
	)
	return nil
}
