package model

import "time"

// UserSeasonBalance holds a member's running counters for one season.
type UserSeasonBalance struct {
	ID                    string         `json:"id"`
	UserID                string         `json:"user_id"`
	SeasonID              string         `json:"season_id"`
	RotativosTomados      int            `json:"rotativos_tomados"`
	RotativosObligatorios int            `json:"rotativos_obligatorios"`
	RotativosPorLicencia  int            `json:"rotativos_por_licencia"`
	MaxProyectado         int            `json:"max_proyectado"`
	MaxAjustadoManual     *int           `json:"max_ajustado_manual,omitempty"`
	FinesDeSemanaMes      map[string]int `json:"fines_de_semana_mes"`
	BloqueUsado           bool           `json:"bloque_usado"`
	FechaIngreso          *time.Time     `json:"fecha_ingreso,omitempty"`
	UpdatedOn             time.Time      `json:"updated_on"`
}

// Quota returns the manual override when present, else the projected max.
func (b *UserSeasonBalance) Quota() int {
	if b.MaxAjustadoManual != nil {
		return *b.MaxAjustadoManual
	}
	return b.MaxProyectado
}

// BalanceDelta describes a single counter change applied atomically.
type BalanceDelta struct {
	Tomados      int
	Obligatorios int
	// WeekendMonth is the YYYY-MM key Weekends applies to.
	WeekendMonth string
	Weekends     int
	// BloqueUsado sets or clears the block flag when non-nil.
	BloqueUsado *bool
}

// DeltaFor returns the change one rotation of requestType on event makes.
// Block rotations are exempt from the weekend counter.
func DeltaFor(requestType string, event *Event, inBlock bool) BalanceDelta {
	var d BalanceDelta
	if requestType == RequestTypeObligatorio {
		d.Obligatorios = 1
	} else {
		d.Tomados = 1
	}
	if event != nil && event.IsWeekend() && !inBlock {
		d.WeekendMonth = event.MonthKey()
		d.Weekends = 1
	}
	return d
}

// Add sums two deltas. The weekend month of other wins when set.
func (d BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	out := BalanceDelta{
		Tomados:      d.Tomados + other.Tomados,
		Obligatorios: d.Obligatorios + other.Obligatorios,
		WeekendMonth: d.WeekendMonth,
		Weekends:     d.Weekends,
		BloqueUsado:  d.BloqueUsado,
	}
	if other.WeekendMonth != "" {
		out.WeekendMonth = other.WeekendMonth
		out.Weekends = other.Weekends
	}
	if other.BloqueUsado != nil {
		out.BloqueUsado = other.BloqueUsado
	}
	return out
}

// Negate returns the delta that undoes d. The block flag is cleared when d
// set it.
func (d BalanceDelta) Negate() BalanceDelta {
	out := BalanceDelta{
		Tomados:      -d.Tomados,
		Obligatorios: -d.Obligatorios,
		WeekendMonth: d.WeekendMonth,
		Weekends:     -d.Weekends,
	}
	if d.BloqueUsado != nil {
		cleared := !*d.BloqueUsado
		out.BloqueUsado = &cleared
	}
	return out
}

// IsZero reports whether the delta changes nothing.
func (d BalanceDelta) IsZero() bool {
	return d.Tomados == 0 && d.Obligatorios == 0 && d.Weekends == 0 && d.BloqueUsado == nil
}

// BalanceSource is one approved rotation a balance is derived from.
type BalanceSource struct {
	RequestType string
	EventDate   time.Time
	InBlock     bool
}

// Delta returns the counter change the source rotation accounts for.
func (s BalanceSource) Delta() BalanceDelta {
	return DeltaFor(s.RequestType, &Event{Date: s.EventDate}, s.InBlock)
}

// BalanceRecalculation reports a balance re-derived from its source records.
type BalanceRecalculation struct {
	Balance *UserSeasonBalance `json:"balance"`
	Changed bool               `json:"changed"`
}

// ManualMaxRequest pins or clears the admin quota override.
type ManualMaxRequest struct {
	MaxAjustadoManual *int `json:"max_ajustado_manual"`
}

// Validate validates a ManualMaxRequest
func (r *ManualMaxRequest) Validate() []FieldError {
	if r.MaxAjustadoManual != nil && *r.MaxAjustadoManual < 0 {
		return []FieldError{{Field: "max_ajustado_manual", Message: "must not be negative"}}
	}
	return nil
}
