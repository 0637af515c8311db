// Package metrics exposes Prometheus collectors for the rotation service.
//
// A single Collector owns its registry and is handed to the rules engine,
// the services and the background jobs, each of which sees it through a
// narrow interface of its own:
//
//	collector := metrics.NewCollector(logger)
//	engine := rules.NewEngine(rules.EngineConfig{Catalog: catalog, Metrics: collector})
//	mux.Handle("GET /metrics", collector.Handler())
package metrics
