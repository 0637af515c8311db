// Package config manages application configuration for the Rotativos API.
//
// Configuration is read from environment variables through struct tags and
// then checked as a whole:
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS)
//   - DatabaseConfig: SurrealDB connection settings
//   - RulesConfig: rule seed file and capacity cache TTL
//   - TelemetryConfig: OTLP trace export
//   - MetricsConfig: Prometheus endpoint
//   - JobsConfig: balance reconciler schedule
//
// # Environment Variables
//
//	SERVER_PORT                  - HTTP server port (default: 8080)
//	SERVER_ENV                   - development, production or test
//	DB_HOST, DB_PORT             - SurrealDB address
//	DB_NAMESPACE, DB_DATABASE    - SurrealDB namespace and database
//	RULES_SEED_FILE              - optional YAML rule config seed
//	RULES_CAPACITY_TTL           - capacity cache TTL (default: 60s)
//	OTEL_ENABLED                 - export traces over OTLP/HTTP
//	OTEL_EXPORTER_OTLP_ENDPOINT  - collector host:port
//	METRICS_ENABLED              - serve Prometheus metrics
//	RECONCILE_INTERVAL           - balance reconciler period (default: 1h)
//
// Validate reports every problem at once with errors.Join.
package config
