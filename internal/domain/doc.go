// Package domain contains the core business entities and types for ForPrompt.
//
// This package defines:
//   - Entity types (Trace, Span, UsageLedger, WebhookSubscription, etc.)
//   - Value objects and enums
//   - Input/output types for service operations
//   - Domain-level validation rules
//
// # Design Philosophy
//
// Domain types are persistence-agnostic and represent the core
// business concepts independent of how they are stored or transmitted.
//
// # Key Entities
//
//   - Trace: One logical execution, identified by a client-supplied key
//   - Span: An atomic event (message, model call, tool call) within a trace
//   - UsageLedger: Per-organization, per-billing-period counters
//   - WebhookSubscription: A registered endpoint plus secret and event filter
//   - Prompt/PromptVersion: Opaque prompt-management collaborators
//
// # Naming Conventions
//
// Types ending in "Input" are used for create/update operations.
package domain
