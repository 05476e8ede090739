// Package lifecycle drives a booking's terminal transition: claim it
// exactly once, archive it durably, count it, mirror it, and only then
// purge it from the active store. All triggers (native expiry, polled
// sweeps, explicit cancellation) funnel through Finalize; the
// conditional-update claim in the active store is the sole
// synchronization between them.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slotserve/theaterbook/internal/domain"
	"github.com/slotserve/theaterbook/internal/repository"
	"github.com/slotserve/theaterbook/internal/schedule"
	"github.com/slotserve/theaterbook/internal/snapshot"
)

// ActiveStore is the primary store of live reservations.
type ActiveStore interface {
	Get(ctx context.Context, id string) (*domain.Booking, error)
	ListActive(ctx context.Context) ([]domain.Booking, error)
	Claim(ctx context.Context, id string, disposition domain.Disposition, reason string, refundPaise int64, claimedAt time.Time) error
	GetClaimed(ctx context.Context, id string) (*domain.ClaimedBooking, error)
	ListClaimed(ctx context.Context) ([]domain.ClaimedBooking, error)
	MarkCounted(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

// ArchiveWriter is the durable secondary store. Upsert must be
// idempotent on booking id.
type ArchiveWriter interface {
	Upsert(ctx context.Context, rec domain.ArchivedBooking) error
}

// Counters is the per-category rolling counter store.
type Counters interface {
	Increment(ctx context.Context, category domain.CounterCategory, now time.Time) error
}

// Mirror is the best-effort append-only copy of the archive.
type Mirror interface {
	Append(ctx context.Context, rec domain.ArchivedBooking) error
}

// Notifier publishes booking-archived notifications. Optional.
type Notifier interface {
	PublishBookingArchived(ctx context.Context, bookingID, disposition string) error
}

// Invalidator drops cached reads touched by an archive write. Optional.
type Invalidator interface {
	InvalidateArchive(ctx context.Context, disposition domain.Disposition, archivedAt time.Time) error
}

type Config struct {
	// SlotRule is the grace rule sweeps apply to confirmed and manual
	// bookings. Defaults to the two-hour slot-end rule; the
	// five-minute auto-complete variant must be selected explicitly.
	SlotRule schedule.GraceRule

	// SweepConcurrency bounds parallel finalizations across distinct
	// bookings in one sweep pass.
	SweepConcurrency int
}

type Service struct {
	bookings ActiveStore
	archive  ArchiveWriter
	counters Counters
	mirror   Mirror
	notifier Notifier
	cache    Invalidator
	logger   *slog.Logger
	cfg      Config
}

func New(
	bookings ActiveStore,
	archive ArchiveWriter,
	counters Counters,
	mirror Mirror,
	notifier Notifier,
	cache Invalidator,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.SlotRule == "" {
		cfg.SlotRule = schedule.RuleConfirmedSlotEnd
	}

	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 8
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		bookings: bookings,
		archive:  archive,
		counters: counters,
		mirror:   mirror,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		cfg:      cfg,
	}
}

// FinalizeOptions carries per-call inputs for Finalize.
type FinalizeOptions struct {
	// Reason is recorded for cancellations.
	Reason string

	// VerifyExpiry re-checks the booking's expiry at claim time.
	// Sweep-detected triggers must set it: time has passed since
	// detection and the booking may have been edited meanwhile.
	VerifyExpiry bool

	// Rule overrides the configured slot rule for this call.
	Rule schedule.GraceRule
}

// Result reports what a successful (or pending) finalize did.
type Result struct {
	BookingID   string             `json:"booking_id"`
	Disposition domain.Disposition `json:"disposition"`
	RefundPaise int64              `json:"refund_paise"`
}

// Finalize drives one booking through claim, archive, count, mirror
// and purge.
//
// Returns:
//   - error: lifecycle.ErrAlreadyFinalized if another trigger owns the
//     booking (no side effects were performed).
//   - error: lifecycle.ErrNotEligible if VerifyExpiry is set and the
//     booking has not expired yet.
//   - error: lifecycle.ErrArchivePending if the claim succeeded but a
//     durable step failed; the booking stays claimed and a later
//     sweep resumes it.
func (s *Service) Finalize(
	ctx context.Context,
	id string,
	disposition domain.Disposition,
	opts FinalizeOptions,
	now time.Time,
) (Result, error) {
	const op = "service.lifecycle.Finalize"

	if !disposition.Valid() {
		return Result{}, fmt.Errorf("%s: invalid disposition %q", op, disposition)
	}

	rule := opts.Rule
	if rule == "" {
		rule = s.cfg.SlotRule
	}

	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// claimed rows are invisible to Get; distinguish a
			// concurrent claim from a genuinely unknown id
			if _, cerr := s.bookings.GetClaimed(ctx, id); cerr == nil {
				return Result{}, fmt.Errorf("%s:%w", op, ErrAlreadyFinalized)
			}
			return Result{}, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	if opts.VerifyExpiry {
		expiry, err := schedule.BookingExpiry(*b, rule)
		if err != nil {
			return Result{}, fmt.Errorf("%s:%w", op, err)
		}
		if now.Before(expiry) {
			return Result{}, fmt.Errorf("%s:%w", op, ErrNotEligible)
		}
	}

	var refund int64
	if disposition == domain.DispositionCancelled {
		refund = s.refundFor(*b, now)
	}

	if err := s.bookings.Claim(ctx, id, disposition, opts.Reason, refund, now); err != nil {
		if errors.Is(err, repository.ErrClaimConflict) {
			return Result{}, fmt.Errorf("%s:%w", op, ErrAlreadyFinalized)
		}
		return Result{}, fmt.Errorf("%s:%w", op, err)
	}

	cb := domain.ClaimedBooking{
		Booking:     *b,
		Disposition: disposition,
		Reason:      opts.Reason,
		RefundPaise: refund,
		ClaimedAt:   now,
	}
	cb.Status = domain.StatusClaimed

	if err := s.complete(ctx, cb, now); err != nil {
		// claimed but not purged: invisible to booking queries,
		// resumed by the next sweep pass
		return Result{BookingID: id, Disposition: disposition, RefundPaise: refund},
			fmt.Errorf("%s:%w: %w", op, ErrArchivePending, err)
	}

	return Result{BookingID: id, Disposition: disposition, RefundPaise: refund}, nil
}

// refundFor computes the cancellation refund. An unparseable slot
// cannot prove the 72-hour lead time, so it earns no refund; the full
// snapshot survives in the archive for manual review.
func (s *Service) refundFor(b domain.Booking, cancelledAt time.Time) int64 {
	slot, err := schedule.ResolveSlot(b.DateText, b.TimeText)
	if err != nil {
		s.logger.Warn("refund skipped, unparseable slot",
			"booking_id", b.ID, "error", err)
		return 0
	}
	return schedule.RefundablePaise(b.AdvancePaise, slot.Start, cancelledAt)
}

// complete runs the post-claim steps: archive upsert, counter
// increment, best-effort mirror, then purge. Archive and counter are
// attempted independently and each is retryable without re-claiming;
// purge happens only when both have succeeded, so a claimed row always
// carries whatever work is still owed.
func (s *Service) complete(ctx context.Context, cb domain.ClaimedBooking, now time.Time) error {
	rec, err := s.buildArchiveRecord(cb, now)
	if err != nil {
		return err
	}

	var stepErrs []error

	archived := false
	if err := s.archive.Upsert(ctx, rec); err != nil {
		stepErrs = append(stepErrs, fmt.Errorf("archive: %w", err))
	} else {
		archived = true

		if err := s.mirror.Append(ctx, rec); err != nil {
			// mirror is non-authoritative; never abort on it
			s.logger.Warn("blob mirror append failed",
				"booking_id", cb.ID, "error", err)
		}
	}

	if !cb.Counted {
		category := domain.CounterForDisposition(cb.Disposition)
		if err := s.counters.Increment(ctx, category, now); err != nil {
			stepErrs = append(stepErrs, fmt.Errorf("counter: %w", err))
		} else {
			cb.Counted = true
			if err := s.bookings.MarkCounted(ctx, cb.ID); err != nil {
				s.logger.Warn("mark counted failed",
					"booking_id", cb.ID, "error", err)
			}
		}
	}

	if len(stepErrs) > 0 {
		return errors.Join(stepErrs...)
	}

	if !archived {
		return errors.New("archive not confirmed")
	}

	if err := s.bookings.Purge(ctx, cb.ID); err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.PublishBookingArchived(ctx, cb.ID, string(cb.Disposition)); err != nil {
			s.logger.Warn("archive notification failed",
				"booking_id", cb.ID, "error", err)
		}
	}

	if s.cache != nil {
		_ = s.cache.InvalidateArchive(ctx, cb.Disposition, rec.ArchivedAt)
	}

	return nil
}

func (s *Service) buildArchiveRecord(cb domain.ClaimedBooking, now time.Time) (domain.ArchivedBooking, error) {
	// the snapshot keeps the original active-state booking verbatim,
	// dynamic occasion fields included
	orig := cb.Booking
	orig.Status = domain.StatusActive

	blob, err := snapshot.Encode(orig)
	if err != nil {
		return domain.ArchivedBooking{}, fmt.Errorf("snapshot: %w", err)
	}

	rec := domain.ArchivedBooking{
		BookingID:    cb.ID,
		Disposition:  cb.Disposition,
		CustomerName: cb.CustomerName,
		TheaterID:    cb.TheaterID,
		DateText:     cb.DateText,
		TimeText:     cb.TimeText,
		TotalPaise:   cb.TotalPaise,
		Snapshot:     blob,
		ArchivedAt:   now,
	}

	if cb.Disposition == domain.DispositionCancelled {
		rec.Reason = cb.Reason
		rec.RefundPaise = cb.RefundPaise
	}

	return rec, nil
}

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Scanned   int `json:"scanned"`
	Finalized int `json:"finalized"`
	Resumed   int `json:"resumed"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

// SweepExpired resumes any claimed-but-not-purged bookings, then scans
// active bookings and finalizes every one whose expiry instant is at
// or before now with disposition completed. Malformed date/time
// strings are logged and skipped, never fatal to the pass. Distinct
// bookings are processed in parallel; one booking is never processed
// twice within a pass.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (SweepReport, error) {
	return s.SweepExpiredWithRule(ctx, now, s.cfg.SlotRule)
}

// SweepExpiredWithRule runs one sweep pass with an explicit grace rule
// instead of the configured one.
func (s *Service) SweepExpiredWithRule(ctx context.Context, now time.Time, rule schedule.GraceRule) (SweepReport, error) {
	const op = "service.lifecycle.SweepExpired"

	if rule == "" {
		rule = s.cfg.SlotRule
	}

	var report SweepReport

	resumed, err := s.ResumeClaimed(ctx, now)
	report.Resumed = resumed
	if err != nil {
		s.logger.Warn("resume pass incomplete", "error", err)
	}

	active, err := s.bookings.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("%s:%w", op, err)
	}

	report.Scanned = len(active)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SweepConcurrency)

	for _, b := range active {
		b := b

		expiry, err := schedule.BookingExpiry(b, rule)
		if err != nil {
			s.logger.Warn("sweep skip, unparseable schedule",
				"booking_id", b.ID, "error", err)
			report.Skipped++
			continue
		}

		// eligible at the boundary: expiry == now sweeps
		if expiry.After(now) {
			continue
		}

		g.Go(func() error {
			_, err := s.Finalize(gCtx, b.ID, domain.DispositionCompleted, FinalizeOptions{
				VerifyExpiry: true,
				Rule:         rule,
			}, now)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				report.Finalized++
			case errors.Is(err, ErrAlreadyFinalized), errors.Is(err, ErrNotEligible):
				report.Conflicts++
			default:
				report.Failed++
				s.logger.Error("sweep finalize failed",
					"booking_id", b.ID, "error", err)
			}

			return nil
		})
	}

	_ = g.Wait()

	return report, nil
}

// ResumeClaimed picks up bookings that were claimed but never purged
// (an archive write failed or timed out mid-transition) and re-runs
// the post-claim steps. The claim itself is never re-attempted.
func (s *Service) ResumeClaimed(ctx context.Context, now time.Time) (int, error) {
	const op = "service.lifecycle.ResumeClaimed"

	claimed, err := s.bookings.ListClaimed(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	resumed := 0
	for _, cb := range claimed {
		if err := s.complete(ctx, cb, now); err != nil {
			s.logger.Warn("resume failed, will retry next pass",
				"booking_id", cb.ID, "error", err)
			continue
		}
		resumed++
	}

	return resumed, nil
}
