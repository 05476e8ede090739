// Package stats is the read side for dashboards: rolling counters per
// category and archived-booking reports. Every statistic has a slow
// fallback derived by scanning the raw stores, so reports survive a
// counter-store outage.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotserve/theaterbook/internal/domain"
	redisx "github.com/slotserve/theaterbook/internal/redis"
	"github.com/slotserve/theaterbook/internal/repository"
	redisrepo "github.com/slotserve/theaterbook/internal/repository/redis"
	"github.com/slotserve/theaterbook/internal/schedule"
	"github.com/slotserve/theaterbook/internal/snapshot"
)

// CounterReader is the fast statistics source.
type CounterReader interface {
	ReadAll(ctx context.Context, now time.Time) (map[domain.CounterCategory]domain.CounterRecord, error)
}

// CreationScanner derives creation counts by scanning live bookings.
type CreationScanner interface {
	RollingCreatedCounts(ctx context.Context, category domain.BookingCategory, day, week, month, year time.Time) (domain.CounterRecord, error)
}

// ArchiveScanner reads the durable archive tables.
type ArchiveScanner interface {
	Query(ctx context.Context, disposition domain.Disposition, from, to time.Time) ([]domain.ArchivedBooking, error)
	RollingCounts(ctx context.Context, disposition domain.Disposition, day, week, month, year time.Time) (domain.CounterRecord, error)
}

// MirrorReader serves archive reads when the archive store is down.
type MirrorReader interface {
	Read(ctx context.Context, d domain.Disposition) ([]domain.ArchivedBooking, error)
}

type Config struct {
	ArchiveQueryTTL time.Duration
}

type Service struct {
	bookings CreationScanner
	archive  ArchiveScanner
	counters CounterReader
	cache    *redisrepo.Cache
	mirror   MirrorReader
	logger   *slog.Logger
	cfg      Config
}

func New(
	bookings CreationScanner,
	archive ArchiveScanner,
	counters CounterReader,
	cache *redisrepo.Cache,
	mirror MirrorReader,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.ArchiveQueryTTL <= 0 {
		cfg.ArchiveQueryTTL = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		bookings: bookings,
		archive:  archive,
		counters: counters,
		cache:    cache,
		mirror:   mirror,
		logger:   logger,
		cfg:      cfg,
	}
}

// Report is the full counter read-out plus how it was obtained.
type Report struct {
	Counters map[domain.CounterCategory]domain.CounterRecord `json:"counters"`
	// Derived is true when the counter store was unreachable and the
	// numbers were rebuilt by scanning the booking stores.
	Derived bool `json:"derived"`
}

// ReadAll returns every category's rolling counts. When the counter
// store is down it falls back to deriving the counts from Postgres:
// creation categories from active-booking creation instants,
// disposition categories from archive rows.
func (s *Service) ReadAll(ctx context.Context, now time.Time) (*Report, error) {
	const op = "service.stats.ReadAll"

	counters, err := s.counters.ReadAll(ctx, now)
	if err == nil {
		return &Report{Counters: counters}, nil
	}

	if !errors.Is(err, repository.ErrStoreUnavailable) {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Warn("counter store unavailable, deriving stats from bookings", "error", err)

	derived, derr := s.derive(ctx, now)
	if derr != nil {
		return nil, fmt.Errorf("%s:%w", op, derr)
	}

	return &Report{Counters: derived, Derived: true}, nil
}

func (s *Service) derive(ctx context.Context, now time.Time) (map[domain.CounterCategory]domain.CounterRecord, error) {
	day, week, month, year := schedule.PeriodBoundaries(now)

	out := make(map[domain.CounterCategory]domain.CounterRecord, len(domain.CounterCategories))

	// pending-edit creations share the incomplete counter, so its
	// scan merges into that record instead of replacing it
	for _, bc := range []domain.BookingCategory{
		domain.CategoryConfirmed, domain.CategoryManual,
		domain.CategoryIncomplete, domain.CategoryPendingEdit,
	} {
		rec, err := s.bookings.RollingCreatedCounts(ctx, bc, day, week, month, year)
		if err != nil {
			return nil, err
		}

		key := domain.CounterForCreation(bc)
		agg := out[key]
		agg.Today += rec.Today
		agg.Week += rec.Week
		agg.Month += rec.Month
		agg.Year += rec.Year
		agg.Total += rec.Total
		out[key] = agg
	}

	for _, d := range []domain.Disposition{
		domain.DispositionCompleted, domain.DispositionCancelled,
	} {
		rec, err := s.archive.RollingCounts(ctx, d, day, week, month, year)
		if err != nil {
			return nil, err
		}
		out[domain.CounterForDisposition(d)] = rec
	}

	return out, nil
}

// Entry is one archived booking in a report: the flat row plus the
// decoded snapshot, or a per-record decode failure.
type Entry struct {
	Record      domain.ArchivedBooking `json:"record"`
	Booking     *domain.Booking        `json:"booking,omitempty"`
	DecodeError string                 `json:"decode_error,omitempty"`
}

// Archive lists archived bookings of one disposition in [from, to).
// Results are cached briefly. A snapshot that fails to decode marks
// only its own entry; the query still succeeds. If the archive store
// itself is unreachable the blob mirror serves a best-effort answer.
func (s *Service) Archive(
	ctx context.Context,
	disposition domain.Disposition,
	from, to time.Time,
) ([]Entry, error) {
	const op = "service.stats.Archive"

	key := redisx.KeyArchiveQuery(
		string(disposition), schedule.DateKey(from), schedule.DateKey(to),
	)

	entries, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.ArchiveQueryTTL,
		func(ctx context.Context) ([]Entry, error) {
			recs, err := s.archive.Query(ctx, disposition, from, to)
			if err != nil {
				return nil, err
			}
			return decodeAll(recs), nil
		},
	)
	if err == nil {
		return entries, nil
	}

	s.logger.Warn("archive query failed, serving blob mirror", "error", err)

	mirrored, merr := s.mirror.Read(ctx, disposition)
	if merr != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var recs []domain.ArchivedBooking
	for _, rec := range mirrored {
		if !rec.ArchivedAt.Before(from) && rec.ArchivedAt.Before(to) {
			recs = append(recs, rec)
		}
	}

	return decodeAll(recs), nil
}

func decodeAll(recs []domain.ArchivedBooking) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		e := Entry{Record: rec}
		b, err := snapshot.Decode(rec.Snapshot)
		if err != nil {
			e.DecodeError = err.Error()
		} else {
			e.Booking = &b
		}
		out = append(out, e)
	}
	return out
}
