package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core/booking"
	"github.com/trezcool/madrasa/core/payment"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.bookings[p.BookingID]; !ok {
		return payment.Payment{}, booking.ErrNotFound
	}
	if p.ProviderRef.Valid {
		for _, other := range repo.db.payments {
			if other.Provider == p.Provider && other.ProviderRef == p.ProviderRef {
				return payment.Payment{}, payment.ErrDuplicateRef
			}
		}
	}
	repo.db.payments[p.ID] = p
	repo.db.wrote(TablePayments)
	return p, nil
}

func (repo *paymentRepository) GetPaymentByID(_ context.Context, id string) (payment.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.payments[id]; ok {
		return p, nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) GetPaymentByProviderRef(_ context.Context, provider, ref string) (payment.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.payments {
		if p.Provider == provider && p.ProviderRef.Valid && p.ProviderRef.String == ref {
			return p, nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) TransitionPaymentStatus(
	_ context.Context,
	id string,
	from []payment.Status,
	to payment.Status,
	at time.Time,
) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p, ok := repo.db.payments[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if p.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	p.Status = to
	if to == payment.StatusCompleted {
		p.PaidAt = null.TimeFrom(at)
	}
	p.UpdatedAt = at
	repo.db.payments[id] = p
	repo.db.wrote(TablePayments)
	return true, nil
}
