package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slotserve/theaterbook/internal/domain"
	redisx "github.com/slotserve/theaterbook/internal/redis"
	"github.com/slotserve/theaterbook/internal/repository"
	"github.com/slotserve/theaterbook/internal/schedule"
)

// Lua script applying lazy period rollover and an optional increment
// to one category hash, atomically. Each sub-count resets to 0 when
// its stored boundary date no longer matches the one passed in; total
// never rolls over.
// KEYS[1] = counter hash
// ARGV[1..4] = day/week/month/year boundary dates (YYYY-MM-DD)
// ARGV[5] = increment amount (0 = rollover-only read)
const luaCounter = `
local key = KEYS[1]
local incr = tonumber(ARGV[5])

local periods = {
  {'today', 'last_daily_reset',   ARGV[1]},
  {'week',  'last_weekly_reset',  ARGV[2]},
  {'month', 'last_monthly_reset', ARGV[3]},
  {'year',  'last_yearly_reset',  ARGV[4]},
}

for _, p in ipairs(periods) do
  local field, resetField, boundary = p[1], p[2], p[3]
  local stored = redis.call('HGET', key, resetField)
  if stored ~= boundary then
    redis.call('HSET', key, field, 0)
    redis.call('HSET', key, resetField, boundary)
  end
  if incr > 0 then
    redis.call('HINCRBY', key, field, incr)
  end
end

if incr > 0 then
  redis.call('HINCRBY', key, 'total', incr)
end

return redis.call('HMGET', key,
  'today', 'week', 'month', 'year', 'total',
  'last_daily_reset', 'last_weekly_reset', 'last_monthly_reset', 'last_yearly_reset')
`

// CounterStore holds the five rolling counts per booking category in
// one Redis hash each. Rollover and increment run inside a single Lua
// call, so concurrent increments of the same category never lose
// updates.
type CounterStore struct {
	rdb    *redis.Client
	script *redis.Script
}

func NewCounterStore(rdb *redis.Client) *CounterStore {
	return &CounterStore{
		rdb:    rdb,
		script: redis.NewScript(luaCounter),
	}
}

// Increment bumps every sub-count and total for one category, rolling
// periods over first when now has crossed a boundary. Fails loudly
// when Redis is unreachable; the caller owns retry or fallback.
func (s *CounterStore) Increment(ctx context.Context, category domain.CounterCategory, now time.Time) error {
	const op = "redis.CounterStore.Increment"

	if _, err := s.run(ctx, category, now, 1); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Read returns one category's record, applying any pending rollover
// first. Reads never write counts directly, only the rollover may.
func (s *CounterStore) Read(ctx context.Context, category domain.CounterCategory, now time.Time) (domain.CounterRecord, error) {
	const op = "redis.CounterStore.Read"

	rec, err := s.run(ctx, category, now, 0)
	if err != nil {
		return domain.CounterRecord{}, fmt.Errorf("%s:%w", op, err)
	}

	return rec, nil
}

// ReadAll returns every category's record.
func (s *CounterStore) ReadAll(ctx context.Context, now time.Time) (map[domain.CounterCategory]domain.CounterRecord, error) {
	const op = "redis.CounterStore.ReadAll"

	out := make(map[domain.CounterCategory]domain.CounterRecord, len(domain.CounterCategories))
	for _, category := range domain.CounterCategories {
		rec, err := s.run(ctx, category, now, 0)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		out[category] = rec
	}

	return out, nil
}

func (s *CounterStore) run(
	ctx context.Context,
	category domain.CounterCategory,
	now time.Time,
	incr int64,
) (domain.CounterRecord, error) {
	day, week, month, year := schedule.PeriodBoundaries(now)

	res, err := s.script.Run(
		ctx,
		s.rdb,
		[]string{redisx.KeyCounter(string(category))},
		schedule.DateKey(day), schedule.DateKey(week),
		schedule.DateKey(month), schedule.DateKey(year),
		incr,
	).Result()
	if err != nil {
		return domain.CounterRecord{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 9 {
		return domain.CounterRecord{}, fmt.Errorf("bad script result: %v", res)
	}

	return domain.CounterRecord{
		Today:            toInt(arr[0]),
		Week:             toInt(arr[1]),
		Month:            toInt(arr[2]),
		Year:             toInt(arr[3]),
		Total:            toInt(arr[4]),
		LastDailyReset:   toStr(arr[5]),
		LastWeeklyReset:  toStr(arr[6]),
		LastMonthlyReset: toStr(arr[7]),
		LastYearlyReset:  toStr(arr[8]),
	}, nil
}

func toInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		var x int64
		fmt.Sscan(t, &x)
		return x
	default:
		return 0
	}
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
