package domain

import "errors"

// Error classes surfaced by the engine. Services wrap them with detail so
// callers match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
)
