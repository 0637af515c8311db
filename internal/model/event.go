package model

import "time"

// Season groups the events of one programming year.
type Season struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	WorkingDays int       `json:"working_days"`
	Active      bool      `json:"active"`
}

// Title is a production (opera, concert, ballet) made of one or more events.
type Title struct {
	ID          string `json:"id"`
	SeasonID    string `json:"season_id"`
	Name        string `json:"name"`
	CupoDefault int    `json:"cupo_default"`
}

// Event is a single rehearsal or performance inside a season.
type Event struct {
	ID           string    `json:"id"`
	SeasonID     string    `json:"season_id"`
	TitleID      *string   `json:"title_id,omitempty"`
	Type         string    `json:"type"`
	Date         time.Time `json:"date"`
	CupoOverride *int      `json:"cupo_override,omitempty"`

	// Denormalized from the title when loaded with it
	TitleCupoDefault int `json:"-"`
}

// Event type constants
const (
	EventTypeEnsayo        = "ENSAYO"
	EventTypeEnsayoGeneral = "ENSAYO_GENERAL"
	EventTypeFuncion       = "FUNCION"
	EventTypeConcierto     = "CONCIERTO"
	EventTypeOtro          = "OTRO"
)

// IsWeekend reports whether the event falls on a Saturday or Sunday.
func (e *Event) IsWeekend() bool {
	wd := e.Date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsRehearsal reports whether the event is a rehearsal of any kind.
func (e *Event) IsRehearsal() bool {
	return e.Type == EventTypeEnsayo || e.Type == EventTypeEnsayoGeneral
}

// IsPerformance reports whether the event is a performance.
func (e *Event) IsPerformance() bool {
	return e.Type == EventTypeFuncion
}

// EffectiveCupo returns the per-event override when set, else the title default.
func (e *Event) EffectiveCupo() int {
	if e.CupoOverride != nil {
		return *e.CupoOverride
	}
	return e.TitleCupoDefault
}

// MonthKey returns the YYYY-MM key used by the weekend-per-month counters.
func (e *Event) MonthKey() string {
	return MonthKey(e.Date)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// Block is an exclusive absence covering every event of one title.
type Block struct {
	ID             string  `json:"id"`
	SeasonID       string  `json:"season_id"`
	TitleID        string  `json:"title_id"`
	Name           string  `json:"name"`
	AssignedUserID *string `json:"assigned_user_id,omitempty"`
	Status         string  `json:"status"`
}

// Block status constants
const (
	BlockStatusDisponible = "DISPONIBLE"
	BlockStatusAsignado   = "ASIGNADO"
	BlockStatusEnCurso    = "EN_CURSO"
	BlockStatusFinalizado = "FINALIZADO"
)

// IsLocked reports whether the block has started and can no longer be
// reassigned or cancelled.
func (b *Block) IsLocked() bool {
	return b.Status == BlockStatusEnCurso || b.Status == BlockStatusFinalizado
}
