package payment

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// allowedFrom lists, per target status, the statuses a payment may leave to reach it.
// Nothing leaves completed.
var allowedFrom = map[Status][]Status{
	StatusPending:   {StatusFailed},
	StatusCompleted: {StatusPending, StatusFailed},
	StatusFailed:    {StatusPending},
}

func (s Status) Valid() bool {
	_, ok := allowedFrom[s]
	return ok
}

// AllowedFrom returns the statuses from which a payment may move to s.
func AllowedFrom(s Status) []Status {
	return append([]Status(nil), allowedFrom[s]...)
}

type Payment struct {
	ID          string      `json:"id"`
	BookingID   string      `json:"booking_id"`
	Status      Status      `json:"status"`
	Amount      int64       `json:"amount"` // minor units
	Currency    string      `json:"currency"`
	Provider    string      `json:"provider"`
	ProviderRef null.String `json:"provider_ref"`
	PaidAt      null.Time   `json:"paid_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewPayment contains information needed to record a Payment.
type NewPayment struct {
	BookingID   string `json:"booking_id" validate:"required"`
	Amount      int64  `json:"amount" validate:"min=1"`
	Currency    string `json:"currency" validate:"required,currency"`
	Status      Status `json:"status" validate:"omitempty,oneof=pending completed failed"`
	Provider    string `json:"provider"`
	ProviderRef string `json:"provider_ref"`
}

// UpdateStatus is the payload of a status change.
type UpdateStatus struct {
	Status Status `json:"status" validate:"required,oneof=pending completed failed"`
}
