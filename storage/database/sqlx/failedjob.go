package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
)

type failedJobRepository struct {
	db core.DB
}

var _ core.FailedJobRepository = (*failedJobRepository)(nil) // interface compliance check

func NewFailedJobRepository(db core.DB) *failedJobRepository {
	return &failedJobRepository{db: db}
}

func (repo failedJobRepository) CreateFailedJob(ctx context.Context, fj core.FailedJob) (core.FailedJob, error) {
	payload := interface{}(nil)
	if len(fj.Payload) > 0 {
		payload = []byte(fj.Payload)
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO failed_jobs (id, job_id, handler, payload, attempts, error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fj.ID, fj.JobID, fj.Handler, payload, fj.Attempts, fj.Error, fj.FailedAt,
	)
	if err != nil {
		return core.FailedJob{}, errors.Wrap(err, "inserting failed job")
	}
	return fj, nil
}

func (repo failedJobRepository) QueryFailedJobs(ctx context.Context, limit int) ([]core.FailedJob, error) {
	jobs := make([]core.FailedJob, 0)
	err := repo.db.SelectContext(ctx, &jobs,
		`SELECT id, job_id, handler, COALESCE(payload, 'null'::jsonb) AS payload, attempts, error, failed_at
		FROM failed_jobs ORDER BY failed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying failed jobs")
	}
	return jobs, nil
}
