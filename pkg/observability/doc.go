// Package observability provides the service's structured JSON logger,
// Prometheus metrics, health checks, and optional OpenTelemetry export.
//
// The logger is deliberately small: leveled, structured, and context
// aware. Request-scoped fields (request id, actor id) travel on the
// context and are folded into every entry by FromContext.
package observability
