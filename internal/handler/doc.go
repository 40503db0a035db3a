// Package handler contains the HTTP handlers for the public API.
//
// Handlers translate between HTTP and the service layer: they resolve the
// authenticated project, parse and validate request bodies, call a service,
// and map service errors to status codes. No business logic lives here.
package handler
