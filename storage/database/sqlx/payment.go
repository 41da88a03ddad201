package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/payment"
)

type paymentRow struct {
	ID          string         `db:"id"`
	BookingID   string         `db:"booking_id"`
	Status      payment.Status `db:"status"`
	Amount      int64          `db:"amount"`
	Currency    string         `db:"currency"`
	Provider    string         `db:"provider"`
	ProviderRef null.String    `db:"provider_ref"`
	PaidAt      null.Time      `db:"paid_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r paymentRow) payment() payment.Payment {
	if r.PaidAt.Valid {
		r.PaidAt.Time = r.PaidAt.Time.UTC()
	}
	return payment.Payment{
		ID:          r.ID,
		BookingID:   r.BookingID,
		Status:      r.Status,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Provider:    r.Provider,
		ProviderRef: r.ProviderRef,
		PaidAt:      r.PaidAt,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const paymentColumns = "id, booking_id, status, amount, currency, provider, provider_ref, paid_at, created_at, updated_at"

type paymentRepository struct {
	db core.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db core.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

// CreatePayment returns booking.ErrNotFound when the payment references no booking.
func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if !validID(p.BookingID) {
		return payment.Payment{}, booking.ErrNotFound
	}
	var row paymentRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+paymentColumns,
		p.ID, p.BookingID, p.Status, p.Amount, p.Currency, p.Provider, p.ProviderRef, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return payment.Payment{}, payment.ErrDuplicateRef
		case isForeignKeyViolation(err):
			return payment.Payment{}, booking.ErrNotFound
		}
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return row.payment(), nil
}

func (repo paymentRepository) GetPaymentByID(ctx context.Context, id string) (payment.Payment, error) {
	if !validID(id) {
		return payment.Payment{}, payment.ErrNotFound
	}
	var row paymentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "getting payment")
	}
	return row.payment(), nil
}

func (repo paymentRepository) GetPaymentByProviderRef(ctx context.Context, provider, ref string) (payment.Payment, error) {
	var row paymentRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+paymentColumns+" FROM payments WHERE provider = $1 AND provider_ref = $2", provider, ref)
	if err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "getting payment by provider ref")
	}
	return row.payment(), nil
}

func (repo paymentRepository) TransitionPaymentStatus(
	ctx context.Context,
	id string,
	from []payment.Status,
	to payment.Status,
	at time.Time,
) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}

	res, err := repo.db.ExecContext(ctx,
		`UPDATE payments SET
			status = $2,
			paid_at = CASE WHEN $5 THEN $4 ELSE paid_at END,
			updated_at = $4
		WHERE id = $1 AND status = ANY($3)`,
		id, to, pq.Array(statuses), at, to == payment.StatusCompleted,
	)
	if err != nil {
		return false, errors.Wrap(err, "updating payment status")
	}
	return rowsAffected(res, "updating payment status")
}
