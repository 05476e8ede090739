package httpgin

import (
	"time"

	"github.com/slotserve/theaterbook/internal/domain"
)

type CreateBookingRequest struct {
	ID           string                          `json:"id"`
	Category     string                          `json:"category" binding:"required"`
	TheaterID    string                          `json:"theater_id" binding:"required"`
	CustomerName string                          `json:"customer_name" binding:"required"`
	DateText     string                          `json:"date" binding:"required"`
	TimeText     string                          `json:"time" binding:"required"`
	TotalPaise   int64                           `json:"total_paise" binding:"required,gt=0"`
	AdvancePaise int64                           `json:"advance_paise" binding:"gte=0"`
	VenuePaise   int64                           `json:"venue_paise" binding:"gte=0"`
	Occasion     map[string]domain.OccasionField `json:"occasion"`
	CreatedBy    string                          `json:"created_by"`
}

type CreateBookingResponse struct {
	BookingID string `json:"booking_id"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

type FinalizeResponse struct {
	BookingID   string `json:"booking_id"`
	Disposition string `json:"disposition"`
	RefundPaise int64  `json:"refund_paise"`
	Status      string `json:"status"`
}

type SweepRequest struct {
	// Now overrides the sweep instant (RFC3339). Defaults to the
	// server clock at request time.
	Now string `json:"now"`
	// Rule selects the confirmed-booking grace rule: "slot-end"
	// (default, +2h) or "auto-complete" (+5m).
	Rule string `json:"rule"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
