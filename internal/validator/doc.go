// Package validator provides struct validation for request inputs.
//
// This package wraps go-playground/validator to provide:
//   - Consistent validation across all handlers
//   - Human-readable error messages
//   - Structured validation error responses
//
// # Usage
//
// Use validator.Validate() directly:
//
//	if err := validator.Validate(myStruct); err != nil {
//	    // err is a validator.ValidationErrors
//	}
//
// # Custom Validations
//
// Custom validations are registered in init(); event_type checks webhook
// subscription events against the known event set.
// The validator instance is package-level and thread-safe.
package validator
