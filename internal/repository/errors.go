// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure scenarios.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist in the caller's tenant.
// Rows owned by another tenant produce the same error so that their
// existence never leaks. Handlers should translate this into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing row, such
// as activating seating twice for the same event. Handlers should translate
// this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
