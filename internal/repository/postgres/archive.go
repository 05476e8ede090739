package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotserve/theaterbook/internal/domain"
)

// ArchiveRepo is the durable secondary store of finalized bookings:
// one flat table per disposition, keyed by booking id. It is the
// authoritative record for reporting; the blob cache only mirrors it.
type ArchiveRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ArchiveRepo) With(db DB) *ArchiveRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ArchiveRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// tableFor maps a disposition to its archive table. Table names are
// fixed constants, never interpolated from input.
func tableFor(d domain.Disposition) string {
	if d == domain.DispositionCancelled {
		return "cancelled_bookings"
	}
	return "completed_bookings"
}

// Upsert writes an archived booking, idempotent on booking id. A
// retried finalize overwrites the same row rather than duplicating it.
func (r *ArchiveRepo) Upsert(ctx context.Context, rec domain.ArchivedBooking) error {
	const op = "postgres.ArchiveRepo.Upsert"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO `+tableFor(rec.Disposition)+`
	  	 (booking_id, customer_name, theater_id, date_text, time_text,
	  	  total_paise, reason, refund_paise, snapshot, archived_at)
	  	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	  	 ON CONFLICT (booking_id) DO UPDATE SET
	  	  reason = EXCLUDED.reason,
	  	  refund_paise = EXCLUDED.refund_paise,
	  	  archived_at = EXCLUDED.archived_at`,
		rec.BookingID, rec.CustomerName, rec.TheaterID, rec.DateText, rec.TimeText,
		rec.TotalPaise, rec.Reason, rec.RefundPaise, rec.Snapshot, rec.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Query lists archived bookings of one disposition whose archival
// instant falls in [from, to), newest first. Snapshots are returned
// raw; callers decode per record so one bad blob never fails the
// whole query.
func (r *ArchiveRepo) Query(
	ctx context.Context,
	disposition domain.Disposition,
	from, to time.Time,
) ([]domain.ArchivedBooking, error) {
	const op = "postgres.ArchiveRepo.Query"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT booking_id, customer_name, theater_id, date_text, time_text,
	  	  total_paise, reason, refund_paise, snapshot, archived_at
	  	 FROM `+tableFor(disposition)+`
	  	 WHERE archived_at >= $1 AND archived_at < $2
	  	 ORDER BY archived_at DESC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.ArchivedBooking
	for rows.Next() {
		rec := domain.ArchivedBooking{Disposition: disposition}
		if err := rows.Scan(
			&rec.BookingID, &rec.CustomerName, &rec.TheaterID, &rec.DateText, &rec.TimeText,
			&rec.TotalPaise, &rec.Reason, &rec.RefundPaise, &rec.Snapshot, &rec.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// RollingCounts derives today/week/month/year/total counts for one
// disposition straight from the archive table. This is the slow,
// always-available fallback behind every counter-store statistic.
func (r *ArchiveRepo) RollingCounts(
	ctx context.Context,
	disposition domain.Disposition,
	day, week, month, year time.Time,
) (domain.CounterRecord, error) {
	const op = "postgres.ArchiveRepo.RollingCounts"

	db := r.handle()

	var rec domain.CounterRecord
	err := db.QueryRow(ctx,
		`SELECT
	  	  COUNT(*) FILTER (WHERE archived_at >= $1),
	  	  COUNT(*) FILTER (WHERE archived_at >= $2),
	  	  COUNT(*) FILTER (WHERE archived_at >= $3),
	  	  COUNT(*) FILTER (WHERE archived_at >= $4),
	  	  COUNT(*)
	  	 FROM `+tableFor(disposition),
		day, week, month, year,
	).Scan(&rec.Today, &rec.Week, &rec.Month, &rec.Year, &rec.Total)
	if err != nil {
		return domain.CounterRecord{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return rec, nil
}
