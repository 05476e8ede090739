package schedule

import "time"

// DateKey formats an instant as its business-timezone calendar date,
// the form counter reset boundaries are stored in.
func DateKey(t time.Time) string {
	return t.In(BusinessZone).Format("2006-01-02")
}

// PeriodBoundaries returns the current day, week, month and year
// boundary dates for now, all in business time. The week boundary is
// the most recent Sunday, the month boundary the first of the month,
// the year boundary January 1.
func PeriodBoundaries(now time.Time) (day, week, month, year time.Time) {
	now = now.In(BusinessZone)

	day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, BusinessZone)
	week = day.AddDate(0, 0, -int(day.Weekday()))
	month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, BusinessZone)
	year = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, BusinessZone)

	return day, week, month, year
}
