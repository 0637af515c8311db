package repository

// RuleLookup serves the title-scoped rules, which read both events and
// rotations.
type RuleLookup struct {
	*EventRepository
	*RotativoRepository
}

// NewRuleLookup combines the event and rotation repositories
func NewRuleLookup(events *EventRepository, rotativos *RotativoRepository) *RuleLookup {
	return &RuleLookup{EventRepository: events, RotativoRepository: rotativos}
}
