package rules

import (
	"context"
	"time"

	"github.com/forgo/rotativos/api/internal/model"
)

// CapacityProvider resolves the configured daily capacity for an event type.
// ok is false when nothing is configured for that type.
type CapacityProvider interface {
	CupoForEventType(ctx context.Context, eventType string) (cupo int, ok bool, err error)
}

// BlockLookup reads production blocks
type BlockLookup interface {
	GetBlock(ctx context.Context, blockID string) (*model.Block, error)
}

// WaitingListLookup reads a member's queue position; 0 means not queued.
type WaitingListLookup interface {
	Position(ctx context.Context, userID, eventID string) (int, error)
}

// EventLookup reads the event and rotation data the title-scoped rules need.
type EventLookup interface {
	// SameDayEvents returns events of the title on date with one of the
	// given types, excluding excludeEventID.
	SameDayEvents(ctx context.Context, titleID string, date time.Time, types []string, excludeEventID string) ([]*model.Event, error)
	// CountTitleEvents counts events of the title with the given type.
	CountTitleEvents(ctx context.Context, titleID, eventType string) (int, error)
	// CountActiveRotativos counts the member's approved or pending rotations on the events.
	CountActiveRotativos(ctx context.Context, userID string, eventIDs []string) (int, error)
	// CountActiveTitleRotativos counts the member's approved or pending
	// rotations on events of the title with the given type.
	CountActiveTitleRotativos(ctx context.Context, userID, titleID, eventType string) (int, error)
}

// Deps are the read-only collaborators of the built-in rules.
type Deps struct {
	Capacities  CapacityProvider
	Blocks      BlockLookup
	WaitingList WaitingListLookup
	Events      EventLookup
}

// DefaultCatalog registers the built-in rules in their canonical order.
func DefaultCatalog(deps Deps) *Catalog {
	return NewCatalog(
		NewPlazoSolicitudRule(),
		NewBloqueExclusivoRule(deps.Blocks),
		NewCupoDiarioRule(deps.Capacities),
		NewMaximoProyectadoRule(),
		NewFinesDeSemanaRule(),
		NewEnsayosDoblesRule(deps.Events),
		NewFuncionesPorTituloRule(deps.Events),
		NewListaEsperaRule(deps.WaitingList, deps.Capacities),
		NewAlertaCercaniaRule(),
		NewRotacionObligatoriaRule(),
		NewCoberturaExternaRule(),
		NewLicenciasRule(),
		NewIntegranteNuevoRule(),
	)
}

// PromotionExemptRules are skipped when a queued request is re-validated on
// promotion: capacity was just checked, and the queue and alert rules only
// report.
var PromotionExemptRules = []string{RuleCupoDiario, RuleListaEspera, RuleAlertaCercania}
