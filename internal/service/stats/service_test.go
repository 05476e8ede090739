package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slotserve/theaterbook/internal/domain"
	"github.com/slotserve/theaterbook/internal/repository"
	"github.com/slotserve/theaterbook/internal/schedule"
)

type fakeCounterReader struct {
	recs map[domain.CounterCategory]domain.CounterRecord
	err  error
}

func (f *fakeCounterReader) ReadAll(_ context.Context, _ time.Time) (map[domain.CounterCategory]domain.CounterRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

type fakeCreationScanner struct {
	perCategory map[domain.BookingCategory]domain.CounterRecord
	scanned     []domain.BookingCategory
	lastDay     time.Time
	lastWeek    time.Time
}

func (f *fakeCreationScanner) RollingCreatedCounts(
	_ context.Context,
	category domain.BookingCategory,
	day, week, _, _ time.Time,
) (domain.CounterRecord, error) {
	f.scanned = append(f.scanned, category)
	f.lastDay = day
	f.lastWeek = week
	return f.perCategory[category], nil
}

type fakeArchiveScanner struct {
	perDisposition map[domain.Disposition]domain.CounterRecord
}

func (f *fakeArchiveScanner) Query(_ context.Context, _ domain.Disposition, _, _ time.Time) ([]domain.ArchivedBooking, error) {
	return nil, nil
}

func (f *fakeArchiveScanner) RollingCounts(
	_ context.Context,
	disposition domain.Disposition,
	_, _, _, _ time.Time,
) (domain.CounterRecord, error) {
	return f.perDisposition[disposition], nil
}

func TestReadAllPassesThroughWhenCountersHealthy(t *testing.T) {
	counters := &fakeCounterReader{
		recs: map[domain.CounterCategory]domain.CounterRecord{
			domain.CounterConfirmed: {Today: 4, Total: 40},
		},
	}
	bookings := &fakeCreationScanner{}

	svc := New(bookings, &fakeArchiveScanner{}, counters, nil, nil, nil, Config{})

	report, err := svc.ReadAll(context.Background(), time.Now())
	require.NoError(t, err)
	require.False(t, report.Derived)
	require.Equal(t, int64(4), report.Counters[domain.CounterConfirmed].Today)
	require.Empty(t, bookings.scanned, "healthy counter store must not trigger a scan")
}

func TestReadAllDerivesWhenCounterStoreDown(t *testing.T) {
	counters := &fakeCounterReader{
		err: fmt.Errorf("%w: connection refused", repository.ErrStoreUnavailable),
	}
	bookings := &fakeCreationScanner{
		perCategory: map[domain.BookingCategory]domain.CounterRecord{
			domain.CategoryConfirmed: {Today: 2, Week: 5, Month: 9, Year: 20, Total: 20},
			domain.CategoryManual:    {Today: 1, Week: 1, Month: 2, Year: 3, Total: 3},
		},
	}
	archive := &fakeArchiveScanner{
		perDisposition: map[domain.Disposition]domain.CounterRecord{
			domain.DispositionCompleted: {Today: 3, Week: 8, Month: 15, Year: 60, Total: 61},
			domain.DispositionCancelled: {Today: 1, Week: 2, Month: 4, Year: 9, Total: 9},
		},
	}

	svc := New(bookings, archive, counters, nil, nil, nil, Config{})

	report, err := svc.ReadAll(context.Background(), time.Now())
	require.NoError(t, err)
	require.True(t, report.Derived)

	require.Equal(t, int64(2), report.Counters[domain.CounterConfirmed].Today)
	require.Equal(t, int64(3), report.Counters[domain.CounterManual].Total)
	require.Equal(t, int64(3), report.Counters[domain.CounterCompleted].Today)
	require.Equal(t, int64(9), report.Counters[domain.CounterCancelled].Total)
}

// Pending-edit creations are counted under the incomplete counter, so
// the derived incomplete statistic must merge both category scans.
func TestDerivedIncompleteIncludesPendingEdit(t *testing.T) {
	counters := &fakeCounterReader{
		err: fmt.Errorf("%w: connection refused", repository.ErrStoreUnavailable),
	}
	bookings := &fakeCreationScanner{
		perCategory: map[domain.BookingCategory]domain.CounterRecord{
			domain.CategoryIncomplete:  {Today: 3, Week: 4, Month: 6, Year: 7, Total: 7},
			domain.CategoryPendingEdit: {Today: 2, Week: 2, Month: 3, Year: 4, Total: 4},
		},
	}

	svc := New(bookings, &fakeArchiveScanner{}, counters, nil, nil, nil, Config{})

	report, err := svc.ReadAll(context.Background(), time.Now())
	require.NoError(t, err)
	require.True(t, report.Derived)

	rec := report.Counters[domain.CounterIncomplete]
	require.Equal(t, int64(5), rec.Today)
	require.Equal(t, int64(6), rec.Week)
	require.Equal(t, int64(9), rec.Month)
	require.Equal(t, int64(11), rec.Year)
	require.Equal(t, int64(11), rec.Total)

	require.Contains(t, bookings.scanned, domain.CategoryPendingEdit)
}

func TestReadAllSurfacesNonAvailabilityErrors(t *testing.T) {
	counters := &fakeCounterReader{err: fmt.Errorf("bad script result")}

	svc := New(&fakeCreationScanner{}, &fakeArchiveScanner{}, counters, nil, nil, nil, Config{})

	_, err := svc.ReadAll(context.Background(), time.Now())
	require.Error(t, err)
}

// Derivation must query against the business-time period boundaries,
// not raw server time.
func TestDeriveUsesScheduleBoundaries(t *testing.T) {
	counters := &fakeCounterReader{
		err: fmt.Errorf("%w: connection refused", repository.ErrStoreUnavailable),
	}
	bookings := &fakeCreationScanner{}

	svc := New(bookings, &fakeArchiveScanner{}, counters, nil, nil, nil, Config{})

	now := time.Date(2026, 8, 26, 10, 0, 0, 0, schedule.BusinessZone)
	_, err := svc.ReadAll(context.Background(), now)
	require.NoError(t, err)

	require.Equal(t, "2026-08-26", schedule.DateKey(bookings.lastDay))
	require.Equal(t, "2026-08-23", schedule.DateKey(bookings.lastWeek))
}
