// Package errors provides application error types for ForPrompt.
//
// This package defines:
//   - AppError type with error classification
//   - Error constructors for common error types
//   - Error type checking helpers
//   - HTTP status code mapping
//
// # Error Types
//
//   - NotFound: Resource does not exist (404)
//   - Validation: Invalid input data (400)
//   - Conflict: Duplicate unique key (409)
//   - Unauthorized: Authentication required (401)
//   - Internal: Unexpected server error (500)
//
// # Usage
//
// Create errors using constructor functions:
//
//	return apperrors.NotFound("Trace")
//	return apperrors.Validation("url is required")
//
// Check error types:
//
//	if apperrors.IsNotFound(err) {
//	    // Handle not found
//	}
//
// Delivery and metering failures are deliberately NOT part of this
// taxonomy's surfaced errors: they are retried or logged inside their
// components and never propagate to an ingestion caller.
package errors
