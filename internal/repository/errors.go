package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrClaimConflict means another trigger already claimed the
	// booking. Callers treat it as a silent no-op, not a failure.
	ErrClaimConflict = errors.New("booking already claimed")

	// ErrStoreUnavailable wraps backing-store outages. Retryable;
	// must never cause a purge.
	ErrStoreUnavailable = errors.New("store unavailable")
)
