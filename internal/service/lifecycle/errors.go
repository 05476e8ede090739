package lifecycle

import "errors"

var (
	// ErrBookingNotFound: no booking, active or claimed, has the id.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrAlreadyFinalized: another trigger claimed the booking first.
	// Silent no-op at the sweep level, never surfaced to a user as a
	// failure.
	ErrAlreadyFinalized = errors.New("booking already finalized")

	// ErrNotEligible: the booking's expiry instant is still in the
	// future at claim time.
	ErrNotEligible = errors.New("booking not yet expired")

	// ErrArchivePending: the claim succeeded but a durable step
	// failed. The booking is no longer bookable; a later sweep pass
	// resumes the archival. User-facing flows report "processing".
	ErrArchivePending = errors.New("archival pending retry")
)
