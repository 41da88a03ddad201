package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/chat"
	"github.com/trezcool/madrasa/core/events"
)

const ProviderManual = "manual"

var (
	ErrNotFound          = errors.New("payment not found")
	ErrInvalidStatus     = errors.New("invalid payment status")
	ErrInvalidTransition = errors.New("payment status cannot change this way")
	ErrDuplicateRef      = errors.New("a payment with this provider reference already exists")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPaymentByID(ctx context.Context, id string) (Payment, error)
		GetPaymentByProviderRef(ctx context.Context, provider, ref string) (Payment, error)
		// TransitionPaymentStatus moves the payment to `to` only when its current status is one of `from`,
		// setting paid_at when `to` is completed. It reports whether the row moved.
		TransitionPaymentStatus(ctx context.Context, id string, from []Status, to Status, at time.Time) (bool, error)
	}

	BookingFinalizer interface {
		Finalize(ctx context.Context, bookingID string) (booking.Booking, bool, error)
	}

	ChatProvisioner interface {
		EnsureForBooking(ctx context.Context, b booking.Booking) (chat.Room, error)
	}

	Service struct {
		repo      Repository
		bookings  BookingFinalizer
		chats     ChatProvisioner
		publisher events.Publisher
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	bookings BookingFinalizer,
	chats ChatProvisioner,
	publisher events.Publisher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		bookings:  bookings,
		chats:     chats,
		publisher: publisher,
		logger:    logger,
	}
}

// Create records a payment. A payment created as completed is finalized right away.
func (svc *Service) Create(ctx context.Context, np NewPayment) (Payment, error) {
	status := np.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return Payment{}, ErrInvalidStatus
	}
	provider := np.Provider
	if provider == "" {
		provider = ProviderManual
	}

	now := time.Now().UTC()
	p := Payment{
		ID:        uuid.NewString(),
		BookingID: np.BookingID,
		Status:    status,
		Amount:    np.Amount,
		Currency:  np.Currency,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if np.ProviderRef != "" {
		p.ProviderRef = null.StringFrom(np.ProviderRef)
	}
	if status == StatusCompleted {
		p.PaidAt = null.TimeFrom(now)
	}

	p, err := svc.repo.CreatePayment(ctx, p)
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}

	if p.Status == StatusCompleted {
		if err = svc.finalize(ctx, p); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPaymentByID(ctx, id)
}

// UpdateStatus moves the payment to status. Only the call that actually moves it to completed
// finalizes the booking; setting the current status again is a no-op.
func (svc *Service) UpdateStatus(ctx context.Context, id string, status Status) (Payment, error) {
	if !status.Valid() {
		return Payment{}, ErrInvalidStatus
	}

	p, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if p.Status == status {
		return p, nil
	}

	moved, err := svc.repo.TransitionPaymentStatus(ctx, id, AllowedFrom(status), status, time.Now().UTC())
	if err != nil {
		return Payment{}, errors.Wrap(err, "updating payment status")
	}

	p, err = svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, errors.Wrap(err, "getting payment")
	}
	if !moved {
		if p.Status == status { // a concurrent update got there first
			return p, nil
		}
		return p, ErrInvalidTransition
	}

	if status == StatusCompleted {
		if err = svc.finalize(ctx, p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// UpdateStatusByProviderRef is UpdateStatus for a payment known by its gateway reference.
func (svc *Service) UpdateStatusByProviderRef(ctx context.Context, provider, ref string, status Status) (Payment, error) {
	p, err := svc.repo.GetPaymentByProviderRef(ctx, provider, ref)
	if err != nil {
		return Payment{}, err
	}
	return svc.UpdateStatus(ctx, p.ID, status)
}

// finalize confirms the booking and ensures its chat room. Errors propagate to the payment writer.
func (svc *Service) finalize(ctx context.Context, p Payment) error {
	b, confirmed, err := svc.bookings.Finalize(ctx, p.BookingID)
	if err != nil {
		return errors.Wrap(err, "finalizing booking")
	}
	if b.ID == "" {
		return nil
	}

	if _, err = svc.chats.EnsureForBooking(ctx, b); err != nil {
		return errors.Wrap(err, "ensuring chat room")
	}

	if confirmed {
		ev := events.BookingConfirmed{
			BookingID:     b.ID,
			TeacherUserID: b.TeacherUserID,
			StudentID:     b.StudentID,
			ConfirmedAt:   b.ConfirmedAt.Time,
		}
		if err = svc.publisher.Dispatch(ctx, ev); err != nil {
			svc.logger.Error(fmt.Sprintf("publishing booking confirmation %s: %v", b.ID, err), err)
		}
	}
	return nil
}
