package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/slotserve/theaterbook/internal/domain"
	"github.com/slotserve/theaterbook/internal/schedule"
)

func newTestCounterStore(t *testing.T) *CounterStore {
	t.Helper()

	mr := miniredis.RunT(t)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewCounterStore(rdb)
}

func bt(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, schedule.BusinessZone)
}

func TestCounterIncrementAndRead(t *testing.T) {
	store := newTestCounterStore(t)
	ctx := context.Background()

	now := bt(2026, 8, 25, 23, 0, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Increment(ctx, domain.CounterConfirmed, now))
	}

	rec, err := store.Read(ctx, domain.CounterConfirmed, now)
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.Today)
	require.Equal(t, int64(3), rec.Week)
	require.Equal(t, int64(3), rec.Month)
	require.Equal(t, int64(3), rec.Year)
	require.Equal(t, int64(3), rec.Total)
	require.Equal(t, "2026-08-25", rec.LastDailyReset)
}

func TestCounterDayRolloverOnRead(t *testing.T) {
	store := newTestCounterStore(t)
	ctx := context.Background()

	lateNight := bt(2026, 8, 25, 23, 59, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Increment(ctx, domain.CounterCompleted, lateNight))
	}

	// one second into the next business day: today resets, the wider
	// periods and total keep their counts
	justAfterMidnight := bt(2026, 8, 26, 0, 0, 1)

	rec, err := store.Read(ctx, domain.CounterCompleted, justAfterMidnight)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.Today)
	require.Equal(t, int64(3), rec.Week)
	require.Equal(t, int64(3), rec.Month)
	require.Equal(t, int64(3), rec.Total)
	require.Equal(t, "2026-08-26", rec.LastDailyReset)
}

func TestCounterIncrementAfterRolloverCountsOne(t *testing.T) {
	store := newTestCounterStore(t)
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, domain.CounterCancelled, bt(2026, 8, 25, 22, 0, 0)))

	// the reset applies before the increment within the same call
	nextDay := bt(2026, 8, 26, 0, 0, 1)
	require.NoError(t, store.Increment(ctx, domain.CounterCancelled, nextDay))

	rec, err := store.Read(ctx, domain.CounterCancelled, nextDay)
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.Today)
	require.Equal(t, int64(2), rec.Week)
	require.Equal(t, int64(2), rec.Total)
}

func TestCounterWeekRolloverOnSunday(t *testing.T) {
	store := newTestCounterStore(t)
	ctx := context.Background()

	// Saturday night
	require.NoError(t, store.Increment(ctx, domain.CounterManual, bt(2026, 8, 29, 23, 0, 0)))

	// Sunday starts a new week and a new day
	sunday := bt(2026, 8, 30, 0, 1, 0)

	rec, err := store.Read(ctx, domain.CounterManual, sunday)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.Today)
	require.Equal(t, int64(0), rec.Week)
	require.Equal(t, int64(1), rec.Month)
	require.Equal(t, int64(1), rec.Year)
	require.Equal(t, int64(1), rec.Total)
	require.Equal(t, "2026-08-30", rec.LastWeeklyReset)
}

func TestCounterYearRolloverKeepsWeekAndTotal(t *testing.T) {
	store := newTestCounterStore(t)
	ctx := context.Background()

	require.NoError(t, store.Increment(ctx, domain.CounterConfirmed, bt(2026, 12, 31, 23, 59, 0)))

	// Jan 1 2027 is a Friday: day, month and year roll over but the
	// week that started Sunday Dec 27 is still running
	newYear := bt(2027, 1, 1, 0, 0, 1)

	rec, err := store.Read(ctx, domain.CounterConfirmed, newYear)
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.Today)
	require.Equal(t, int64(1), rec.Week)
	require.Equal(t, int64(0), rec.Month)
	require.Equal(t, int64(0), rec.Year)
	require.Equal(t, int64(1), rec.Total)
	require.Equal(t, "2026-12-27", rec.LastWeeklyReset)
	require.Equal(t, "2027-01-01", rec.LastYearlyReset)
}

func TestCounterReadAllCoversEveryCategory(t *testing.T) {
	store := newTestCounterStore(t)
	ctx := context.Background()

	now := bt(2026, 8, 25, 12, 0, 0)
	require.NoError(t, store.Increment(ctx, domain.CounterIncomplete, now))

	all, err := store.ReadAll(ctx, now)
	require.NoError(t, err)
	require.Len(t, all, len(domain.CounterCategories))
	require.Equal(t, int64(1), all[domain.CounterIncomplete].Total)
	require.Equal(t, int64(0), all[domain.CounterConfirmed].Total)
}
