package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotserve/theaterbook/internal/domain"
)

func ist(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, BusinessZone)
}

func TestResolveSlot(t *testing.T) {
	tests := []struct {
		name      string
		dateText  string
		timeText  string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "iso date with range",
			dateText:  "2025-03-14",
			timeText:  "4:00 PM - 7:00 PM",
			wantStart: ist(2025, time.March, 14, 16, 0),
			wantEnd:   ist(2025, time.March, 14, 19, 0),
		},
		{
			name:      "verbose date with range",
			dateText:  "Friday, March 14, 2025",
			timeText:  "4:00 PM - 7:00 PM",
			wantStart: ist(2025, time.March, 14, 16, 0),
			wantEnd:   ist(2025, time.March, 14, 19, 0),
		},
		{
			name:      "en dash range",
			dateText:  "2025-03-14",
			timeText:  "4:00 PM – 7:00 PM",
			wantStart: ist(2025, time.March, 14, 16, 0),
			wantEnd:   ist(2025, time.March, 14, 19, 0),
		},
		{
			name:      "single time",
			dateText:  "2025-03-14",
			timeText:  "7:00 PM",
			wantStart: ist(2025, time.March, 14, 19, 0),
			wantEnd:   ist(2025, time.March, 14, 19, 0),
		},
		{
			name:      "lowercase markers",
			dateText:  "2025-03-14",
			timeText:  "9:30 am - 11:45 pm",
			wantStart: ist(2025, time.March, 14, 9, 30),
			wantEnd:   ist(2025, time.March, 14, 23, 45),
		},
		{
			name:      "no space before marker",
			dateText:  "2025-12-31",
			timeText:  "10:00PM",
			wantStart: ist(2025, time.December, 31, 22, 0),
			wantEnd:   ist(2025, time.December, 31, 22, 0),
		},
		{
			name:      "midnight crossing stays on booking day",
			dateText:  "2025-06-01",
			timeText:  "12:00 AM",
			wantStart: ist(2025, time.June, 1, 0, 0),
			wantEnd:   ist(2025, time.June, 1, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := ResolveSlot(tt.dateText, tt.timeText)
			require.NoError(t, err)
			assert.True(t, slot.Start.Equal(tt.wantStart), "start: got %v want %v", slot.Start, tt.wantStart)
			assert.True(t, slot.End.Equal(tt.wantEnd), "end: got %v want %v", slot.End, tt.wantEnd)
		})
	}
}

func TestResolveSlotErrors(t *testing.T) {
	tests := []struct {
		name     string
		dateText string
		timeText string
		wantKind ParseKind
	}{
		{"garbage date", "sometime soon", "7:00 PM", InvalidDate},
		{"empty date", "", "7:00 PM", InvalidDate},
		{"garbage time", "2025-03-14", "evening", InvalidTime},
		{"half range", "2025-03-14", "4:00 PM - later", InvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveSlot(tt.dateText, tt.timeText)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want ParseError, got %v", err)
			assert.Equal(t, tt.wantKind, pe.Kind)
		})
	}
}

func TestExpiryInstant(t *testing.T) {
	end := ist(2025, time.March, 14, 19, 0)

	assert.True(t, ExpiryInstant(RuleConfirmedSlotEnd, end).Equal(ist(2025, time.March, 14, 21, 0)))
	assert.True(t, ExpiryInstant(RuleConfirmedAutoComplete, end).Equal(ist(2025, time.March, 14, 19, 5)))

	created := ist(2025, time.March, 14, 10, 30)
	assert.True(t, ExpiryInstant(RuleIncomplete, created).Equal(ist(2025, time.March, 14, 22, 30)))
	assert.True(t, ExpiryInstant(RulePendingEdit, created).Equal(ist(2025, time.March, 14, 22, 30)))
}

func TestBookingExpiry(t *testing.T) {
	confirmed := domain.Booking{
		Category: domain.CategoryConfirmed,
		DateText: "2025-03-14",
		TimeText: "4:00 PM - 7:00 PM",
	}

	exp, err := BookingExpiry(confirmed, RuleConfirmedSlotEnd)
	require.NoError(t, err)
	// range end + 2h, not range start
	assert.True(t, exp.Equal(ist(2025, time.March, 14, 21, 0)))

	// incomplete bookings ignore slot text entirely, even malformed
	incomplete := domain.Booking{
		Category:  domain.CategoryIncomplete,
		DateText:  "not a date",
		TimeText:  "not a time",
		CreatedAt: ist(2025, time.March, 14, 8, 0),
	}

	exp, err = BookingExpiry(incomplete, RuleConfirmedSlotEnd)
	require.NoError(t, err)
	assert.True(t, exp.Equal(ist(2025, time.March, 14, 20, 0)))

	_, err = BookingExpiry(domain.Booking{
		Category: domain.CategoryConfirmed,
		DateText: "bad",
		TimeText: "7:00 PM",
	}, RuleConfirmedSlotEnd)
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, InvalidDate, pe.Kind)
}

func TestRefundablePaise(t *testing.T) {
	slotStart := ist(2025, time.March, 14, 16, 0)
	advance := int64(50000)

	// exactly 72h before: full refund
	assert.Equal(t, advance, RefundablePaise(advance, slotStart, slotStart.Add(-72*time.Hour)))
	// one second inside the cutoff: nothing
	assert.Equal(t, int64(0), RefundablePaise(advance, slotStart, slotStart.Add(-72*time.Hour+time.Second)))
	// well before: full refund
	assert.Equal(t, advance, RefundablePaise(advance, slotStart, slotStart.Add(-96*time.Hour)))
	// after slot start: nothing
	assert.Equal(t, int64(0), RefundablePaise(advance, slotStart, slotStart.Add(time.Hour)))
}
