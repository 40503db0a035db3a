// Package service contains the business logic layer.
//
// Services coordinate between handlers and repositories: span ingestion
// and trace lifecycle, usage metering against organization ledgers, and
// webhook registry plus delivery.
//
// Services depend on repository interfaces defined in this package,
// following the dependency inversion principle. Each service handles a
// specific domain area (traces, usage, webhooks).
//
// # Thread Safety
//
// All services are designed to be safe for concurrent use from
// multiple goroutines.
package service
