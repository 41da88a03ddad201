package inmemdb

import (
	"context"

	"github.com/trezcool/madrasa/core/points"
)

type pointsRepository struct {
	db *DB
}

var _ points.Repository = (*pointsRepository)(nil) // interface compliance check

func NewPointsRepository(db *DB) *pointsRepository {
	return &pointsRepository{db: db}
}

func (repo *pointsRepository) AddPoints(_ context.Context, e points.Entry) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.ledger = append(repo.db.ledger, e)
	repo.db.wrote(TablePointsLedger)
	return repo.db.pointsTotal(e.UserID), nil
}

// caller holds the lock
func (db *DB) pointsTotal(userID string) int {
	total := 0
	for _, e := range db.ledger {
		if e.UserID == userID {
			total += e.Points
		}
	}
	return total
}
