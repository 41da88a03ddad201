package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core/booking"
)

type bookingRepository struct {
	db *DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db *DB) *bookingRepository {
	return &bookingRepository{db: db}
}

// resolve fills the teacher's user id the way the SQL join does. caller holds the lock.
func (repo *bookingRepository) resolve(b booking.Booking) booking.Booking {
	b.TeacherUserID = ""
	if t, ok := repo.db.teachers[b.TeacherID]; ok {
		b.TeacherUserID = t.UserID
	}
	return b
}

func (repo *bookingRepository) CreateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.bookings[b.ID] = b
	repo.db.wrote(TableBookings)
	return repo.resolve(b), nil
}

func (repo *bookingRepository) GetBookingByID(_ context.Context, id string) (booking.Booking, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.bookings[id]; ok {
		return repo.resolve(b), nil
	}
	return booking.Booking{}, booking.ErrNotFound
}

func (repo *bookingRepository) MarkBookingPaid(_ context.Context, id string, at time.Time) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	b, ok := repo.db.bookings[id]
	if !ok || b.PaymentReceived {
		return false, nil
	}
	b.PaymentReceived = true
	confirmed := b.Status == booking.StatusPending
	if confirmed {
		b.Status = booking.StatusConfirmed
		b.ConfirmedAt = null.TimeFrom(at)
	}
	b.UpdatedAt = at
	repo.db.bookings[id] = b
	repo.db.wrote(TableBookings)
	return confirmed, nil
}
