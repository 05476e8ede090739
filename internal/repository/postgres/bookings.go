package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotserve/theaterbook/internal/domain"
	"github.com/slotserve/theaterbook/internal/repository"
)

// BookingRepo is the primary store of live reservations. A booking
// stays here through every active category and through the claimed
// window, and leaves only via Purge after a confirmed archive write.
type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const bookingColumns = `booking_id, internal_id, category, theater_id, customer_name,
	date_text, time_text, total_paise, advance_paise, venue_paise,
	occasion, status, created_by, created_at`

// Insert writes a freshly created booking in active status.
//
// Returns:
//   - error: repository.ErrConflict if the booking id already exists.
func (r *BookingRepo) Insert(ctx context.Context, b domain.Booking) error {
	const op = "postgres.BookingRepo.Insert"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO bookings (`+bookingColumns+`)
	  	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		b.ID, b.InternalID, b.Category, b.TheaterID, b.CustomerName,
		b.DateText, b.TimeText, b.TotalPaise, b.AdvancePaise, b.VenuePaise,
		b.Occasion, domain.StatusActive, b.CreatedBy, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Get retrieves an active booking. Claimed rows are invisible here:
// once claimed, a booking no longer reads as bookable.
//
// Returns:
//   - error: repository.ErrNotFound if no active booking has the id.
func (r *BookingRepo) Get(ctx context.Context, id string) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	db := r.handle()

	var b domain.Booking
	err := db.QueryRow(ctx,
		`SELECT `+bookingColumns+`
	  	 FROM bookings
	  	 WHERE booking_id = $1 AND status = $2`,
		id, domain.StatusActive,
	).Scan(
		&b.ID, &b.InternalID, &b.Category, &b.TheaterID, &b.CustomerName,
		&b.DateText, &b.TimeText, &b.TotalPaise, &b.AdvancePaise, &b.VenuePaise,
		&b.Occasion, &b.Status, &b.CreatedBy, &b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &b, nil
}

// ListActive returns every active booking. Sweeps scan this and decide
// expiry per booking; claimed rows are excluded.
func (r *BookingRepo) ListActive(ctx context.Context) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListActive"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`
	  	 FROM bookings
	  	 WHERE status = $1
	  	 ORDER BY created_at`,
		domain.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.InternalID, &b.Category, &b.TheaterID, &b.CustomerName,
			&b.DateText, &b.TimeText, &b.TotalPaise, &b.AdvancePaise, &b.VenuePaise,
			&b.Occasion, &b.Status, &b.CreatedBy, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// Claim atomically transitions a booking from active to claimed with
// its terminal disposition. The conditional update is the only
// synchronization between concurrent finalize triggers: exactly one
// caller observes a matched row.
//
// Returns:
//   - error: repository.ErrClaimConflict if the booking is not in an
//     active state (already claimed, or already purged).
func (r *BookingRepo) Claim(
	ctx context.Context,
	id string,
	disposition domain.Disposition,
	reason string,
	refundPaise int64,
	claimedAt time.Time,
) error {
	const op = "postgres.BookingRepo.Claim"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE bookings
	  	 SET status = $2, disposition = $3, reason = $4, refund_paise = $5, claimed_at = $6
	  	 WHERE booking_id = $1 AND status = $7`,
		id, domain.StatusClaimed, disposition, reason, refundPaise, claimedAt,
		domain.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrClaimConflict)
	}

	return nil
}

// GetClaimed retrieves a claimed-but-not-purged booking.
func (r *BookingRepo) GetClaimed(ctx context.Context, id string) (*domain.ClaimedBooking, error) {
	const op = "postgres.BookingRepo.GetClaimed"

	db := r.handle()

	cb, err := scanClaimed(db.QueryRow(ctx,
		`SELECT `+bookingColumns+`, disposition, reason, refund_paise, counted, claimed_at
	  	 FROM bookings
	  	 WHERE booking_id = $1 AND status = $2`,
		id, domain.StatusClaimed,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return cb, nil
}

// ListClaimed returns all claimed-but-not-purged bookings, oldest
// first. Resume passes pick these up from the archive step.
func (r *BookingRepo) ListClaimed(ctx context.Context) ([]domain.ClaimedBooking, error) {
	const op = "postgres.BookingRepo.ListClaimed"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+`, disposition, reason, refund_paise, counted, claimed_at
	  	 FROM bookings
	  	 WHERE status = $1
	  	 ORDER BY claimed_at`,
		domain.StatusClaimed,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.ClaimedBooking
	for rows.Next() {
		cb, err := scanClaimed(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// MarkCounted records that the disposition counter was incremented for
// this claimed booking, so resume passes never double-count.
func (r *BookingRepo) MarkCounted(ctx context.Context, id string) error {
	const op = "postgres.BookingRepo.MarkCounted"

	db := r.handle()

	_, err := db.Exec(ctx,
		`UPDATE bookings SET counted = TRUE
	  	 WHERE booking_id = $1 AND status = $2`,
		id, domain.StatusClaimed,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// Purge deletes a claimed booking. Only called after the archive write
// succeeded; purging earlier would lose the record permanently.
//
// Returns:
//   - error: repository.ErrNotFound if no claimed row has the id.
func (r *BookingRepo) Purge(ctx context.Context, id string) error {
	const op = "postgres.BookingRepo.Purge"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM bookings WHERE booking_id = $1 AND status = $2`,
		id, domain.StatusClaimed,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// CountActiveByCategory aggregates active bookings per category. Part
// of the slow fallback path for statistics when the counter store is
// down.
func (r *BookingRepo) CountActiveByCategory(ctx context.Context) (map[domain.BookingCategory]int64, error) {
	const op = "postgres.BookingRepo.CountActiveByCategory"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT category, COUNT(*)
	  	 FROM bookings
	  	 WHERE status = $1
	  	 GROUP BY category`,
		domain.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	out := make(map[domain.BookingCategory]int64)
	for rows.Next() {
		var category domain.BookingCategory
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return out, nil
}

// RollingCreatedCounts derives today/week/month/year/total creation
// counts for one category from the active bookings themselves. Part of
// the fallback path when the counter store is down; archived bookings
// of the same origin are counted by the archive side of the fallback.
func (r *BookingRepo) RollingCreatedCounts(
	ctx context.Context,
	category domain.BookingCategory,
	day, week, month, year time.Time,
) (domain.CounterRecord, error) {
	const op = "postgres.BookingRepo.RollingCreatedCounts"

	db := r.handle()

	var rec domain.CounterRecord
	err := db.QueryRow(ctx,
		`SELECT
	  	  COUNT(*) FILTER (WHERE created_at >= $2),
	  	  COUNT(*) FILTER (WHERE created_at >= $3),
	  	  COUNT(*) FILTER (WHERE created_at >= $4),
	  	  COUNT(*) FILTER (WHERE created_at >= $5),
	  	  COUNT(*)
	  	 FROM bookings
	  	 WHERE category = $1`,
		category, day, week, month, year,
	).Scan(&rec.Today, &rec.Week, &rec.Month, &rec.Year, &rec.Total)
	if err != nil {
		return domain.CounterRecord{}, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaimed(row rowScanner) (*domain.ClaimedBooking, error) {
	var cb domain.ClaimedBooking
	err := row.Scan(
		&cb.ID, &cb.InternalID, &cb.Category, &cb.TheaterID, &cb.CustomerName,
		&cb.DateText, &cb.TimeText, &cb.TotalPaise, &cb.AdvancePaise, &cb.VenuePaise,
		&cb.Occasion, &cb.Status, &cb.CreatedBy, &cb.CreatedAt,
		&cb.Disposition, &cb.Reason, &cb.RefundPaise, &cb.Counted, &cb.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}
