package booking

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Booking is a scheduled tutoring session between a student and a teacher.
type Booking struct {
	ID              string    `json:"id"`
	TeacherID       string    `json:"teacher_id"`
	TeacherUserID   string    `json:"teacher_user_id"` // resolved from the teacher profile; empty when the teacher is gone
	StudentID       string    `json:"student_id"`      // a user id
	Status          Status    `json:"status"`
	PaymentReceived bool      `json:"payment_received"`
	ConfirmedAt     null.Time `json:"confirmed_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Finalized reports whether the booking's payment was already taken into account.
func (b Booking) Finalized() bool {
	return b.PaymentReceived
}

// NewBooking contains information needed to create a new Booking.
type NewBooking struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}
