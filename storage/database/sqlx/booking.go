package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
)

type bookingRow struct {
	ID              string         `db:"id"`
	TeacherID       string         `db:"teacher_id"`
	TeacherUserID   string         `db:"teacher_user_id"`
	StudentID       string         `db:"student_id"`
	Status          booking.Status `db:"status"`
	PaymentReceived bool           `db:"payment_received"`
	ConfirmedAt     null.Time      `db:"confirmed_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r bookingRow) booking() booking.Booking {
	if r.ConfirmedAt.Valid {
		r.ConfirmedAt.Time = r.ConfirmedAt.Time.UTC()
	}
	return booking.Booking{
		ID:              r.ID,
		TeacherID:       r.TeacherID,
		TeacherUserID:   r.TeacherUserID,
		StudentID:       r.StudentID,
		Status:          r.Status,
		PaymentReceived: r.PaymentReceived,
		ConfirmedAt:     r.ConfirmedAt,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

const selectBooking = `SELECT b.id,
	COALESCE(b.teacher_id::text, '') AS teacher_id,
	COALESCE(t.user_id::text, '') AS teacher_user_id,
	COALESCE(b.student_id::text, '') AS student_id,
	b.status, b.payment_received, b.confirmed_at, b.created_at, b.updated_at
FROM bookings b
LEFT JOIN teachers t ON t.id = b.teacher_id`

type bookingRepository struct {
	db core.DB
}

var _ booking.Repository = (*bookingRepository)(nil) // interface compliance check

func NewBookingRepository(db core.DB) *bookingRepository {
	return &bookingRepository{db: db}
}

func (repo bookingRepository) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO bookings (id, teacher_id, student_id, status, payment_received, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, nullID(b.TeacherID), nullID(b.StudentID), b.Status, b.PaymentReceived, b.ConfirmedAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return repo.GetBookingByID(ctx, b.ID)
}

func (repo bookingRepository) GetBookingByID(ctx context.Context, id string) (booking.Booking, error) {
	if !validID(id) {
		return booking.Booking{}, booking.ErrNotFound
	}
	var row bookingRow
	if err := repo.db.GetContext(ctx, &row, selectBooking+" WHERE b.id = $1", id); err != nil {
		return booking.Booking{}, trapNoRowsErr(err, booking.ErrNotFound, "getting booking")
	}
	return row.booking(), nil
}

// MarkBookingPaid locks the unpaid row and returns its status from before the update, so a concurrent
// status change cannot be mistaken for this call's confirmation.
func (repo bookingRepository) MarkBookingPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	var confirmed bool
	err := repo.db.GetContext(ctx, &confirmed,
		`WITH prev AS (
			SELECT id, status FROM bookings WHERE id = $1 AND payment_received = FALSE FOR UPDATE
		)
		UPDATE bookings b SET
			payment_received = TRUE,
			confirmed_at = CASE WHEN prev.status = $2 THEN $4 ELSE b.confirmed_at END,
			status = CASE WHEN prev.status = $2 THEN $3 ELSE b.status END,
			updated_at = $4
		FROM prev
		WHERE b.id = prev.id AND b.payment_received = FALSE
		RETURNING prev.status = $2`,
		id, booking.StatusPending, booking.StatusConfirmed, at,
	)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrap(err, "marking booking paid")
	}
	return confirmed, nil
}
