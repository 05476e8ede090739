package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingCategory is the kind of active booking. Every category is a
// live state: a booking leaves the active store only by archival.
type BookingCategory string

const (
	CategoryIncomplete  BookingCategory = "incomplete"
	CategoryConfirmed   BookingCategory = "confirmed"
	CategoryManual      BookingCategory = "manual"
	CategoryPendingEdit BookingCategory = "pending-edit"
)

func (c BookingCategory) Valid() bool {
	switch c {
	case CategoryIncomplete, CategoryConfirmed, CategoryManual, CategoryPendingEdit:
		return true
	}
	return false
}

// BookingStatus is the lifecycle status inside the active store.
// Claimed rows are invisible to active-booking queries but remain
// resumable until purged.
type BookingStatus string

const (
	StatusActive  BookingStatus = "active"
	StatusClaimed BookingStatus = "claimed"
)

// Disposition is the terminal outcome of a booking.
type Disposition string

const (
	DispositionCompleted Disposition = "completed"
	DispositionCancelled Disposition = "cancelled"
)

func (d Disposition) Valid() bool {
	return d == DispositionCompleted || d == DispositionCancelled
}

// OccasionField is one free-form occasion attribute. Keys are dynamic;
// nothing in the engine switches on a known field list.
type OccasionField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Booking is a live reservation in the active store. Date and time are
// kept as the human-formatted strings the booking flow produced; the
// schedule package parses them on demand.
type Booking struct {
	ID         string          `json:"id"`
	InternalID uuid.UUID       `json:"internal_id"`
	Category   BookingCategory `json:"category"`

	TheaterID    string `json:"theater_id"`
	CustomerName string `json:"customer_name"`
	DateText     string `json:"date_text"`
	TimeText     string `json:"time_text"`

	TotalPaise   int64 `json:"total_paise"`
	AdvancePaise int64 `json:"advance_paise"`
	VenuePaise   int64 `json:"venue_paise"`

	Occasion map[string]OccasionField `json:"occasion,omitempty"`

	Status    BookingStatus `json:"status"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
}

// ClaimedBooking is a booking that has been claimed for finalization
// but not yet purged. A sweep pass resumes these from the archive step.
type ClaimedBooking struct {
	Booking
	Disposition Disposition `json:"disposition"`
	Reason      string      `json:"reason,omitempty"`
	RefundPaise int64       `json:"refund_paise"`
	Counted     bool        `json:"counted"`
	ClaimedAt   time.Time   `json:"claimed_at"`
}

// ArchivedBooking is the durable record of a finalized booking. The
// snapshot blob carries the full original booking verbatim; the flat
// columns exist only for querying.
type ArchivedBooking struct {
	BookingID    string      `json:"booking_id"`
	Disposition  Disposition `json:"disposition"`
	CustomerName string      `json:"customer_name"`
	TheaterID    string      `json:"theater_id"`
	DateText     string      `json:"date_text"`
	TimeText     string      `json:"time_text"`
	TotalPaise   int64       `json:"total_paise"`

	Reason      string `json:"reason,omitempty"`
	RefundPaise int64  `json:"refund_paise"`

	Snapshot   string    `json:"snapshot"`
	ArchivedAt time.Time `json:"archived_at"`
}

// CounterCategory keys one counter record. Creation categories and
// terminal dispositions share the same counter store.
type CounterCategory string

const (
	CounterConfirmed  CounterCategory = "confirmed"
	CounterManual     CounterCategory = "manual"
	CounterIncomplete CounterCategory = "incomplete"
	CounterCompleted  CounterCategory = "completed"
	CounterCancelled  CounterCategory = "cancelled"
)

// CounterCategories lists every counter record key, in report order.
var CounterCategories = []CounterCategory{
	CounterConfirmed,
	CounterManual,
	CounterIncomplete,
	CounterCompleted,
	CounterCancelled,
}

// CounterForCreation maps a booking category to the counter bumped at
// creation time.
func CounterForCreation(c BookingCategory) CounterCategory {
	switch c {
	case CategoryManual:
		return CounterManual
	case CategoryIncomplete, CategoryPendingEdit:
		return CounterIncomplete
	default:
		return CounterConfirmed
	}
}

// CounterForDisposition maps a terminal disposition to its counter.
func CounterForDisposition(d Disposition) CounterCategory {
	if d == DispositionCancelled {
		return CounterCancelled
	}
	return CounterCompleted
}

// CounterRecord holds the five rolling counts for one category. The
// reset dates record the period boundary each sub-count was last reset
// against, formatted YYYY-MM-DD in business time.
type CounterRecord struct {
	Today int64 `json:"today"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
	Year  int64 `json:"year"`
	Total int64 `json:"total"`

	LastDailyReset   string `json:"last_daily_reset"`
	LastWeeklyReset  string `json:"last_weekly_reset"`
	LastMonthlyReset string `json:"last_monthly_reset"`
	LastYearlyReset  string `json:"last_yearly_reset"`
}
