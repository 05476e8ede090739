// Package schedule turns the human-formatted date and time strings
// stored on a booking into unambiguous instants in the business
// timezone, and owns the grace-window and refund rules around them.
// Callers pass now explicitly; nothing here reads the wall clock.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/slotserve/theaterbook/internal/domain"
)

// BusinessZone is the fixed deployment timezone. All booking dates and
// slot times are interpreted in it regardless of the caller's zone.
// IST has no DST, so a fixed offset is exact.
var BusinessZone = time.FixedZone("IST", 5*3600+1800)

type ParseKind string

const (
	InvalidDate ParseKind = "invalid_date"
	InvalidTime ParseKind = "invalid_time"
)

// ParseError reports an unparseable date or time string. Sweeps must
// skip and log the offending booking, never abort the batch.
type ParseError struct {
	Kind  ParseKind
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule: %s: %q", e.Kind, e.Input)
}

var dateLayouts = []string{
	"2006-01-02",
	"Monday, January 2, 2006",
	"Monday, January 02, 2006",
}

var timeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
	"15:04",
}

// Slot is a booking's resolved time window. For a single-time slot
// Start and End are equal.
type Slot struct {
	Start time.Time
	End   time.Time
}

// ResolveSlot parses a booking's display date and time strings into a
// Slot in the business timezone. The time string is either a single
// time ("7:00 PM") or a range ("4:00 PM - 7:00 PM", hyphen or en
// dash); AM/PM markers are case-insensitive.
func ResolveSlot(dateText, timeText string) (Slot, error) {
	day, err := parseDate(dateText)
	if err != nil {
		return Slot{}, err
	}

	startText, endText := splitRange(timeText)

	start, err := parseClock(startText)
	if err != nil {
		return Slot{}, &ParseError{Kind: InvalidTime, Input: timeText}
	}

	end := start
	if endText != "" {
		end, err = parseClock(endText)
		if err != nil {
			return Slot{}, &ParseError{Kind: InvalidTime, Input: timeText}
		}
	}

	return Slot{
		Start: onDay(day, start),
		End:   onDay(day, end),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, BusinessZone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Kind: InvalidDate, Input: s}
}

func parseClock(s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Kind: InvalidTime, Input: s}
}

// splitRange splits "4:00 PM - 7:00 PM" into its halves. Returns an
// empty end for a single time. Handles "-", "–" and "—" separators.
func splitRange(s string) (string, string) {
	for _, sep := range []string{"–", "—", " - ", "- ", " -"} {
		if i := strings.Index(s, sep); i >= 0 {
			return s[:i], s[i+len(sep):]
		}
	}
	// a bare hyphen only counts as a separator between two times,
	// not inside tokens
	if parts := strings.Split(s, "-"); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return s, ""
}

func onDay(day, clock time.Time) time.Time {
	return time.Date(
		day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), 0, 0,
		BusinessZone,
	)
}

// GraceRule is a named expiry rule: anchor instant + grace window.
// The two confirmed-booking variants are deliberately distinct; the
// caller selects which one a sweep applies.
type GraceRule string

const (
	// RuleConfirmedSlotEnd expires a confirmed or manual booking two
	// hours after its slot end. Default sweep rule.
	RuleConfirmedSlotEnd GraceRule = "confirmed-slot-end"
	// RuleConfirmedAutoComplete is the narrow auto-complete variant:
	// five minutes after slot end. Selected explicitly by the admin
	// "test expire" sweep, never by default.
	RuleConfirmedAutoComplete GraceRule = "confirmed-auto-complete"
	// RuleIncomplete expires an incomplete booking 12 hours after its
	// creation, independent of any slot time.
	RuleIncomplete GraceRule = "incomplete-after-creation"
	// RulePendingEdit expires a pending-edit request 12 hours after
	// the request timestamp.
	RulePendingEdit GraceRule = "pending-edit-after-request"
)

var graceWindows = map[GraceRule]time.Duration{
	RuleConfirmedSlotEnd:      2 * time.Hour,
	RuleConfirmedAutoComplete: 5 * time.Minute,
	RuleIncomplete:            12 * time.Hour,
	RulePendingEdit:           12 * time.Hour,
}

// ExpiryInstant returns anchor plus the rule's grace window. For slot
// rules the anchor is the slot end; for creation rules it is the
// creation or request instant.
func ExpiryInstant(rule GraceRule, anchor time.Time) time.Time {
	return anchor.In(BusinessZone).Add(graceWindows[rule])
}

// RuleForCategory picks the rule a sweep applies to a category.
// slotRule is the confirmed/manual variant the caller selected.
func RuleForCategory(category domain.BookingCategory, slotRule GraceRule) GraceRule {
	switch category {
	case domain.CategoryIncomplete:
		return RuleIncomplete
	case domain.CategoryPendingEdit:
		return RulePendingEdit
	default:
		return slotRule
	}
}

// BookingExpiry resolves a booking's expiry instant under slotRule.
// Slot-anchored categories need a parseable date and time; the
// creation-anchored categories ignore them entirely.
func BookingExpiry(b domain.Booking, slotRule GraceRule) (time.Time, error) {
	rule := RuleForCategory(b.Category, slotRule)

	switch rule {
	case RuleIncomplete, RulePendingEdit:
		return ExpiryInstant(rule, b.CreatedAt), nil
	default:
		slot, err := ResolveSlot(b.DateText, b.TimeText)
		if err != nil {
			return time.Time{}, err
		}
		return ExpiryInstant(rule, slot.End), nil
	}
}

// refundCutoff is the cancellation lead time that still earns a full
// advance refund.
const refundCutoff = 72 * time.Hour

// RefundablePaise computes the refund for a cancellation: the full
// advance when cancelled at least 72 hours before slot start, zero
// after. Exactly 72 hours refunds in full.
func RefundablePaise(advancePaise int64, slotStart, cancelledAt time.Time) int64 {
	if slotStart.Sub(cancelledAt) >= refundCutoff {
		return advancePaise
	}
	return 0
}
