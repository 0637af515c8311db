package model

import "time"

// AuditEvent is an append-only record of a state change.
type AuditEvent struct {
	ID         string                 `json:"id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	ActorID    string                 `json:"actor_id"`
	Details    map[string]interface{} `json:"details,omitempty"`
	CreatedOn  time.Time              `json:"created_on"`
}

// Audit actions
const (
	AuditRotativoRequested = "rotativo.solicitado"
	AuditRotativoCancelled = "rotativo.cancelado"
	AuditRotativoResolved  = "rotativo.resuelto"
	AuditWaitlistEnqueued  = "lista_espera.agregado"
	AuditWaitlistWithdrawn = "lista_espera.retirado"
	AuditWaitlistPromoted  = "lista_espera.promovido"
	AuditWaitlistPurged    = "lista_espera.purgada"
	AuditBalanceManualMax  = "balance.max_manual"
	AuditRuleConfigUpdated = "regla.configurada"
)

// Audit entity types
const (
	EntityRotativo    = "rotativo"
	EntityWaitingList = "lista_espera"
	EntityBalance     = "balance"
	EntityRuleConfig  = "regla_config"
)

// Notification types sent to members and administrators
const (
	NotificationRotativoAprobado  = "ROTATIVO_APROBADO"
	NotificationRotativoPendiente = "ROTATIVO_PENDIENTE"
	NotificationRotativoRechazado = "ROTATIVO_RECHAZADO"
	NotificationListaEspera       = "LISTA_ESPERA"
	NotificationRevisionAdmin     = "REVISION_ADMIN"
)
