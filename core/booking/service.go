package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
)

var ErrNotFound = errors.New("booking not found")

type (
	Repository interface {
		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		GetBookingByID(ctx context.Context, id string) (Booking, error)
		// MarkBookingPaid sets payment_received (and confirms a pending booking) only if the payment was not
		// received yet. It reports whether this update moved the booking from pending to confirmed.
		MarkBookingPaid(ctx context.Context, id string, at time.Time) (bool, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) Create(ctx context.Context, nb NewBooking) (Booking, error) {
	now := time.Now().UTC()
	return svc.repo.CreateBooking(ctx, Booking{
		ID:        uuid.NewString(),
		TeacherID: nb.TeacherID,
		StudentID: nb.StudentID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Booking, error) {
	return svc.repo.GetBookingByID(ctx, id)
}

// Finalize records the booking's payment and moves a pending booking to confirmed.
// It returns the current booking and whether this call confirmed it.
// An unknown booking is a no-op and yields a zero Booking.
func (svc *Service) Finalize(ctx context.Context, id string) (Booking, bool, error) {
	if id == "" {
		return Booking{}, false, nil
	}

	b, err := svc.repo.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			svc.logger.Warn("finalizing booking: booking " + id + " not found")
			return Booking{}, false, nil
		}
		return Booking{}, false, errors.Wrap(err, "getting booking")
	}
	if b.Finalized() {
		return b, false, nil
	}

	confirmed, err := svc.repo.MarkBookingPaid(ctx, id, time.Now().UTC())
	if err != nil {
		return Booking{}, false, errors.Wrap(err, "marking booking paid")
	}

	b, err = svc.repo.GetBookingByID(ctx, id)
	if err != nil {
		return Booking{}, false, errors.Wrap(err, "getting booking")
	}
	return b, confirmed, nil
}
