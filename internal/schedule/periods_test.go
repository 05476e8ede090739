package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodBoundaries(t *testing.T) {
	// Wednesday, 2025-03-12, 14:30 IST
	now := ist(2025, time.March, 12, 14, 30)

	day, week, month, year := PeriodBoundaries(now)

	assert.Equal(t, "2025-03-12", DateKey(day))
	// most recent Sunday
	assert.Equal(t, "2025-03-09", DateKey(week))
	assert.Equal(t, "2025-03-01", DateKey(month))
	assert.Equal(t, "2025-01-01", DateKey(year))
}

func TestPeriodBoundariesOnSunday(t *testing.T) {
	// a Sunday is its own week boundary
	now := ist(2025, time.March, 9, 0, 0)

	_, week, _, _ := PeriodBoundaries(now)
	assert.Equal(t, "2025-03-09", DateKey(week))
}

func TestPeriodBoundariesUsesBusinessZone(t *testing.T) {
	// 23:30 UTC on the 11th is already the 12th in IST
	now := time.Date(2025, time.March, 11, 23, 30, 0, 0, time.UTC)

	day, _, _, _ := PeriodBoundaries(now)
	assert.Equal(t, "2025-03-12", DateKey(day))
}
