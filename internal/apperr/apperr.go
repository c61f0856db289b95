// Package apperr defines the error taxonomy shared by the stores, trackers
// and HTTP layer. Handlers translate these to status codes; everything else
// wraps them with context.
package apperr

import "errors"

var (
	// ErrNotFound: a referenced student, tutor, team, school or record
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidValue: a status, result, unit, module or identifier is
	// outside the allowed set.
	ErrInvalidValue = errors.New("invalid value")
	// ErrForbidden: the caller's scope does not cover the target entity.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict: a uniqueness violation the upsert fallback could not
	// resolve.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable: the store timed out or the connection failed.
	ErrUnavailable = errors.New("unavailable")
)
