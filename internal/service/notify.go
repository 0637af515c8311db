package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/forgo/rotativos/api/internal/model"
)

// Notifier delivers messages to members and administrators. Delivery is
// best effort: callers log failures and carry on.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, notificationType, message string, data map[string]interface{}) error
	NotifyAdmins(ctx context.Context, notificationType, message string, data map[string]interface{}) error
}

// LogNotifier writes notifications to the structured log. It stands in
// for the push transport, which lives outside this service.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs every message
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyUser logs a notification addressed to one member
func (n *LogNotifier) NotifyUser(ctx context.Context, userID, notificationType, message string, data map[string]interface{}) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("notification_id", uuid.NewString()),
		slog.String("recipient", userID),
		slog.String("type", notificationType),
		slog.String("message", message),
		slog.Any("data", data),
	)
	return nil
}

// NotifyAdmins logs a notification addressed to the administrators
func (n *LogNotifier) NotifyAdmins(ctx context.Context, notificationType, message string, data map[string]interface{}) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("notification_id", uuid.NewString()),
		slog.String("recipient", "admins"),
		slog.String("type", notificationType),
		slog.String("message", message),
		slog.Any("data", data),
	)
	return nil
}

// Auditor records state changes
type Auditor interface {
	RecordAuditEvent(ctx context.Context, action, entityType, entityID, actorID string, details map[string]interface{}) error
}

// AuditRepository defines the interface for audit storage
type AuditRepository interface {
	Record(ctx context.Context, event *model.AuditEvent) error
}

// StoreAuditor persists audit events through an AuditRepository
type StoreAuditor struct {
	repo AuditRepository
}

// NewStoreAuditor creates an auditor backed by repo
func NewStoreAuditor(repo AuditRepository) *StoreAuditor {
	return &StoreAuditor{repo: repo}
}

// RecordAuditEvent stores one audit event
func (a *StoreAuditor) RecordAuditEvent(ctx context.Context, action, entityType, entityID, actorID string, details map[string]interface{}) error {
	return a.repo.Record(ctx, &model.AuditEvent{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Details:    details,
	})
}

// Metrics receives service level counters
type Metrics interface {
	ObserveRequest(status string)
	ObservePromotion(outcome model.PromotionOutcome)
	ObserveQueueChange(op string, n int)
	ObserveBalanceChange(op string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string) {}
func (nopMetrics) ObservePromotion(model.PromotionOutcome) {}
func (nopMetrics) ObserveQueueChange(string, int) {}
func (nopMetrics) ObserveBalanceChange(string) {}

// sideEffects runs the post-commit work of a mutation. Failures are logged
// and never reach the caller.
type sideEffects struct {
	notifier Notifier
	auditor  Auditor
	metrics  Metrics
}

func newSideEffects(notifier Notifier, auditor Auditor, metrics Metrics) sideEffects {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return sideEffects{notifier: notifier, auditor: auditor, metrics: metrics}
}

func (fx sideEffects) notifyUser(ctx context.Context, userID, notificationType, message string, data map[string]interface{}) {
	if fx.notifier == nil {
		return
	}
	if err := fx.notifier.NotifyUser(ctx, userID, notificationType, message, data); err != nil {
		slog.Warn("failed to notify member",
			slog.String("user_id", userID),
			slog.String("type", notificationType),
			slog.String("error", err.Error()),
		)
	}
}

func (fx sideEffects) notifyAdmins(ctx context.Context, notificationType, message string, data map[string]interface{}) {
	if fx.notifier == nil {
		return
	}
	if err := fx.notifier.NotifyAdmins(ctx, notificationType, message, data); err != nil {
		slog.Warn("failed to notify admins",
			slog.String("type", notificationType),
			slog.String("error", err.Error()),
		)
	}
}

func (fx sideEffects) audit(ctx context.Context, action, entityType, entityID, actorID string, details map[string]interface{}) {
	if fx.auditor == nil {
		return
	}
	if err := fx.auditor.RecordAuditEvent(ctx, action, entityType, entityID, actorID, details); err != nil {
		slog.Warn("failed to record audit event",
			slog.String("action", action),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
	}
}
