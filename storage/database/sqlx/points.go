package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/points"
)

type pointsRepository struct {
	db core.DB
}

var _ points.Repository = (*pointsRepository)(nil) // interface compliance check

func NewPointsRepository(db core.DB) *pointsRepository {
	return &pointsRepository{db: db}
}

func (repo pointsRepository) AddPoints(ctx context.Context, e points.Entry) (int, error) {
	var total int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO points_ledger (id, user_id, points, reason, created_at) VALUES ($1, $2, $3, $4, $5)",
			e.ID, e.UserID, e.Points, e.Reason, e.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "inserting points entry")
		}
		err = tx.GetContext(ctx, &total, "SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1", e.UserID)
		return errors.Wrap(err, "summing points")
	})
	return total, err
}
