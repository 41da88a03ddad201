package inmemdb

import (
	"context"

	"github.com/trezcool/madrasa/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var (
	_ certificate.Repository    = (*certificateRepository)(nil) // interface compliance check
	_ certificate.StatsProvider = (*certificateRepository)(nil)
)

func NewCertificateRepository(db *DB) *certificateRepository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) GetCertificateByUserID(_ context.Context, userID string) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.certificates[userID]; ok {
		return c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.certificates[c.UserID]; ok {
		return certificate.Certificate{}, certificate.ErrCertificateExists
	}
	repo.db.certificates[c.UserID] = c
	repo.db.wrote(TableCertificates)
	return c, nil
}

func (repo *certificateRepository) GetUserStats(_ context.Context, userID string) (certificate.Stats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	stats := repo.db.achievements[userID]
	stats.Points = repo.db.pointsTotal(userID)
	return stats, nil
}
