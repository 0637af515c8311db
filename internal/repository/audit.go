package repository

import (
	"context"

	"github.com/forgo/rotativos/api/internal/database"
	"github.com/forgo/rotativos/api/internal/model"
)

// AuditRepository appends audit events
type AuditRepository struct {
	db database.Database
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db database.Database) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an audit event
func (r *AuditRepository) Record(ctx context.Context, event *model.AuditEvent) error {
	query := `
		CREATE audit_event CONTENT {
			action: $action,
			entity_type: $entity_type,
			entity_id: $entity_id,
			actor_id: $actor_id,
			details: $details ?? NONE,
			created_on: time::now()
		}
	`
	var details interface{}
	if len(event.Details) > 0 {
		details = event.Details
	}
	vars := map[string]interface{}{
		"action":      event.Action,
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID,
		"actor_id":    event.ActorID,
		"details":     details,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}
	event.ID = created.ID
	event.CreatedOn = created.CreatedOn
	return nil
}
