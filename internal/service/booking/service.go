// Package booking is the creation-side interface the engine exposes to
// the (out-of-scope) booking forms: write the initial booking into the
// active store and count it, once, per successful creation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/slotserve/theaterbook/internal/domain"
	"github.com/slotserve/theaterbook/internal/repository"
	postgresrepo "github.com/slotserve/theaterbook/internal/repository/postgres"
	redisrepo "github.com/slotserve/theaterbook/internal/repository/redis"
	"github.com/slotserve/theaterbook/internal/uow"
)

type Service struct {
	store    *postgresrepo.Store
	counters *redisrepo.CounterStore
	uow      *uow.UoW
	logger   *slog.Logger
}

func New(store *postgresrepo.Store, counters *redisrepo.CounterStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		counters: counters,
		uow:      uow.NewUoW(store),
		logger:   logger,
	}
}

// CreateParams carries the fields the booking form collected. ID may
// be empty, in which case one is generated.
type CreateParams struct {
	ID           string
	Category     domain.BookingCategory
	TheaterID    string
	CustomerName string
	DateText     string
	TimeText     string
	TotalPaise   int64
	AdvancePaise int64
	VenuePaise   int64
	Occasion     map[string]domain.OccasionField
	CreatedBy    string
}

// Create inserts a booking and, after the insert commits, increments
// the category counter once.
//
// Returns:
//   - error: booking.ErrInvalidCategory for an unknown category.
//   - error: booking.ErrDuplicateBooking if the id is taken.
func (s *Service) Create(ctx context.Context, p CreateParams, now time.Time) (*domain.Booking, error) {
	const op = "service.booking.Create"

	if !p.Category.Valid() {
		return nil, fmt.Errorf("%s:%w: %q", op, ErrInvalidCategory, p.Category)
	}

	if p.ID == "" {
		p.ID = "BK-" + uuid.NewString()[:8]
	}

	b := domain.Booking{
		ID:           p.ID,
		InternalID:   uuid.New(),
		Category:     p.Category,
		TheaterID:    p.TheaterID,
		CustomerName: p.CustomerName,
		DateText:     p.DateText,
		TimeText:     p.TimeText,
		TotalPaise:   p.TotalPaise,
		AdvancePaise: p.AdvancePaise,
		VenuePaise:   p.VenuePaise,
		Occasion:     p.Occasion,
		Status:       domain.StatusActive,
		CreatedBy:    p.CreatedBy,
		CreatedAt:    now,
	}

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		if err := s.store.Bookings().With(tx).Insert(ctx, b); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s:%w", op, ErrDuplicateBooking)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		after(func(ctx context.Context) {
			category := domain.CounterForCreation(b.Category)
			if err := s.counters.Increment(ctx, category, now); err != nil {
				s.logger.Error("creation counter increment failed",
					"booking_id", b.ID, "category", category, "error", err)
			}
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// Get retrieves an active booking.
//
// Returns:
//   - error: booking.ErrBookingNotFound if no active booking has the
//     id (claimed and archived bookings are not visible here).
func (s *Service) Get(ctx context.Context, id string) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.store.Bookings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}
