package booking

import "errors"

var (
	ErrDuplicateBooking = errors.New("booking id already exists")
	ErrInvalidCategory  = errors.New("invalid booking category")
	ErrBookingNotFound  = errors.New("booking not found")
)
