package models

import "errors"

// Sentinel errors shared across the storage, hub, and HTTP layers. Callers
// classify failures with errors.Is and wrap these with context.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already registered")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInvalid      = errors.New("invalid payload")
)
