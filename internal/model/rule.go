package model

import "time"

// RuleCategory groups rules for admin listings
type RuleCategory string

const (
	RuleCategoryCupo        RuleCategory = "cupo"
	RuleCategoryRestriccion RuleCategory = "restriccion"
	RuleCategoryRotacion    RuleCategory = "rotacion"
	RuleCategoryAlerta      RuleCategory = "alerta"
	RuleCategoryBloque      RuleCategory = "bloque"
)

// SuggestedAction is the outcome a rule (or the whole run) recommends.
type SuggestedAction string

const (
	ActionApprove      SuggestedAction = "APPROVE"
	ActionReject       SuggestedAction = "REJECT"
	ActionWaitingList  SuggestedAction = "WAITING_LIST"
	ActionPendingAdmin SuggestedAction = "PENDING_ADMIN"
)

// IsValid reports whether a is one of the known actions.
func (a SuggestedAction) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionWaitingList, ActionPendingAdmin:
		return true
	}
	return false
}

// RuleConfigValue is the persisted override for one rule config key.
// A missing record means the rule runs with its defaults.
type RuleConfigValue struct {
	ConfigKey string                 `json:"config_key"`
	Enabled   bool                   `json:"enabled"`
	Value     map[string]interface{} `json:"value,omitempty"`
	Priority  int                    `json:"priority"`
	UpdatedOn time.Time              `json:"updated_on"`
}

// UpdateRuleConfigRequest is an administrator change to one rule config.
type UpdateRuleConfigRequest struct {
	Enabled  *bool                  `json:"enabled,omitempty"`
	Value    map[string]interface{} `json:"value,omitempty"`
	Priority *int                   `json:"priority,omitempty"`
}

// Validate validates an UpdateRuleConfigRequest
func (r *UpdateRuleConfigRequest) Validate() []FieldError {
	var errors []FieldError
	if r.Enabled == nil && r.Value == nil && r.Priority == nil {
		errors = append(errors, FieldError{Field: "body", Message: "at least one of enabled, value or priority is required"})
	}
	if r.Priority != nil && *r.Priority < 0 {
		errors = append(errors, FieldError{Field: "priority", Message: "priority must not be negative"})
	}
	return errors
}

// RuleInfo is the admin-facing view of a registered rule and its effective config.
type RuleInfo struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Category      RuleCategory           `json:"category"`
	ConfigKey     string                 `json:"config_key"`
	Informational bool                   `json:"informational"`
	Enabled       bool                   `json:"enabled"`
	Priority      int                    `json:"priority"`
	Value         map[string]interface{} `json:"value,omitempty"`
	Overridden    bool                   `json:"overridden"`
}

// BalanceSnapshot is the part of a member's balance a rule can see.
type BalanceSnapshot struct {
	RotativosTomados      int            `json:"rotativos_tomados"`
	RotativosObligatorios int            `json:"rotativos_obligatorios"`
	RotativosPorLicencia  int            `json:"rotativos_por_licencia"`
	MaxProyectado         int            `json:"max_proyectado"`
	MaxAjustadoManual     *int           `json:"max_ajustado_manual,omitempty"`
	FinesDeSemanaMes      map[string]int `json:"fines_de_semana_mes"`
	BloqueUsado           bool           `json:"bloque_usado"`
	FechaIngreso          *time.Time     `json:"fecha_ingreso,omitempty"`
}

// Quota returns the manual override when present, else the projected max.
func (b BalanceSnapshot) Quota() int {
	if b.MaxAjustadoManual != nil {
		return *b.MaxAjustadoManual
	}
	return b.MaxProyectado
}

// EventData carries capacity counters for the requested event.
type EventData struct {
	CurrentApproved  int `json:"current_approved"`
	CupoTotal        int `json:"cupo_total"`
	WaitingListCount int `json:"waiting_list_count"`
}

// SeasonData carries season-wide aggregates.
type SeasonData struct {
	WorkingDays  int     `json:"working_days"`
	MemberCount  int     `json:"member_count"`
	GroupAverage float64 `json:"group_average"`
}

// ValidationContext is the immutable snapshot every rule decides on.
// It is rebuilt for each validation call and never persisted.
type ValidationContext struct {
	UserID      string    `json:"user_id"`
	EventID     string    `json:"event_id"`
	SeasonID    string    `json:"season_id"`
	TitleID     string    `json:"title_id,omitempty"`
	RequestType string    `json:"request_type"`
	RequestDate time.Time `json:"request_date"`
	EventDate   time.Time `json:"event_date"`
	EventType   string    `json:"event_type"`
	IsWeekend   bool      `json:"is_weekend"`
	IsBlock     bool      `json:"is_block"`
	BlockID     string    `json:"block_id,omitempty"`

	// RequestedCount is the number of rotations the request consumes:
	// 1 for a single event, every event of the title for a block.
	RequestedCount int `json:"requested_count"`

	// Set when the event carries its own capacity
	CupoOverride *int `json:"cupo_override,omitempty"`

	UserBalance BalanceSnapshot `json:"user_balance"`
	EventData   EventData       `json:"event_data"`
	SeasonData  SeasonData      `json:"season_data"`
}

// ValidationResult is the outcome of one rule.
type ValidationResult struct {
	RuleID          string                 `json:"rule_id"`
	Passed          bool                   `json:"passed"`
	Blocking        bool                   `json:"blocking"`
	Message         string                 `json:"message"`
	Details         map[string]interface{} `json:"details,omitempty"`
	SuggestedAction *SuggestedAction       `json:"suggested_action,omitempty"`
}

// ValidationSummary aggregates a full validation run.
type ValidationSummary struct {
	CanProceed      bool                `json:"can_proceed"`
	Results         []*ValidationResult `json:"results"`
	SuggestedAction SuggestedAction     `json:"suggested_action"`
	BlockingRule    string              `json:"blocking_rule,omitempty"`
}

// Failed returns the results that did not pass, in evaluation order.
func (s *ValidationSummary) Failed() []*ValidationResult {
	var failed []*ValidationResult
	for _, r := range s.Results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// ActionPtr returns a pointer to a, for building results.
func ActionPtr(a SuggestedAction) *SuggestedAction {
	return &a
}

// Requested returns RequestedCount, never less than 1.
func (vc *ValidationContext) Requested() int {
	if vc.RequestedCount < 1 {
		return 1
	}
	return vc.RequestedCount
}
