package model

import "time"

// Rotativo is a requested or approved absence from one event.
type Rotativo struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	EventID     string `json:"event_id"`
	SeasonID    string `json:"season_id"`
	RequestType string `json:"request_type"` // VOLUNTARIO, OBLIGATORIO, COBERTURA
	Status      string `json:"status"`

	// MotivoInicial is set when the original request needed admin review.
	// A promotion from the waiting list always routes such requests to pending.
	MotivoInicial *string `json:"motivo_inicial,omitempty"`

	// AprobadoPorAdmin marks a request an administrator pre-approved.
	AprobadoPorAdmin bool    `json:"aprobado_por_admin"`
	Motivo           *string `json:"motivo,omitempty"`
	BlockID          *string `json:"block_id,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// Request type constants
const (
	RequestTypeVoluntario  = "VOLUNTARIO"
	RequestTypeObligatorio = "OBLIGATORIO"
	RequestTypeCobertura   = "COBERTURA"
)

// Rotativo status constants
const (
	RotativoStatusAprobado  = "APROBADO"
	RotativoStatusPendiente = "PENDIENTE"
	RotativoStatusRechazado = "RECHAZADO"
	RotativoStatusEnEspera  = "EN_ESPERA"
	RotativoStatusCancelado = "CANCELADO"
)

// IsActive reports whether the rotation still occupies or claims a seat.
func (r *Rotativo) IsActive() bool {
	return r.Status == RotativoStatusAprobado || r.Status == RotativoStatusPendiente
}

// RotativoRequest is the body of a rotation request.
type RotativoRequest struct {
	UserID      string  `json:"user_id"`
	EventID     string  `json:"event_id"`
	RequestType string  `json:"request_type,omitempty"` // Defaults to VOLUNTARIO
	BlockID     *string `json:"block_id,omitempty"`
}

// Validate validates a RotativoRequest
func (r *RotativoRequest) Validate() []FieldError {
	var errors []FieldError

	if r.UserID == "" {
		errors = append(errors, FieldError{Field: "user_id", Message: "user_id is required"})
	}
	if r.EventID == "" {
		errors = append(errors, FieldError{Field: "event_id", Message: "event_id is required"})
	}
	switch r.RequestType {
	case "", RequestTypeVoluntario, RequestTypeObligatorio, RequestTypeCobertura:
	default:
		errors = append(errors, FieldError{Field: "request_type", Message: "must be VOLUNTARIO, OBLIGATORIO or COBERTURA"})
	}

	return errors
}

// ResolvePendingRequest is an administrator decision on a pending rotation.
type ResolvePendingRequest struct {
	Approved bool    `json:"approved"`
	Note     *string `json:"note,omitempty"`
}

// RequestOutcome is the result of a rotation request: the stored rotation,
// the validation run that decided it and, when queued, the waiting list entry.
type RequestOutcome struct {
	Rotativo *Rotativo          `json:"rotativo"`
	Summary  *ValidationSummary `json:"summary"`
	Entry    *WaitingListEntry  `json:"waiting_list_entry,omitempty"`

	// Set when the request took a whole block
	BlockRotativos []*Rotativo `json:"block_rotativos,omitempty"`
}
