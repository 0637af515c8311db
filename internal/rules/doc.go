// Package rules implements the rotativo eligibility engine.
//
// A Catalog holds the registered rules in registration order. The Engine
// loads the persisted overrides once per run, keeps the enabled rules,
// orders them by effective priority and evaluates them one at a time
// against an immutable model.ValidationContext.
//
// # Outcome aggregation
//
// A blocking failure stops the run immediately. Non-blocking failures feed
// a precedence ladder:
//
//	REJECT > PENDING_ADMIN > WAITING_LIST > APPROVE
//
// WAITING_LIST only replaces the APPROVE baseline, so a later queue
// suggestion never downgrades an elevated outcome.
//
// # Configuration
//
// Every rule owns a concrete config struct. The persisted value is decoded
// over the rule defaults exactly once per evaluation; a value that cannot be
// decoded falls back to the defaults instead of failing the request.
//
// # Usage
//
//	catalog := rules.DefaultCatalog(rules.Deps{...})
//	engine := rules.NewEngine(rules.EngineConfig{Catalog: catalog, Configs: store})
//	summary, err := engine.ValidateRequest(ctx, vc)
package rules
