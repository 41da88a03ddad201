package inmemdb

import (
	"context"

	"github.com/trezcool/madrasa/core"
)

type failedJobRepository struct {
	db *DB
}

var _ core.FailedJobRepository = (*failedJobRepository)(nil) // interface compliance check

func NewFailedJobRepository(db *DB) *failedJobRepository {
	return &failedJobRepository{db: db}
}

func (repo *failedJobRepository) CreateFailedJob(_ context.Context, fj core.FailedJob) (core.FailedJob, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.failedJobs = append(repo.db.failedJobs, fj)
	repo.db.wrote(TableFailedJobs)
	return fj, nil
}

// QueryFailedJobs lists the most recent failures first.
func (repo *failedJobRepository) QueryFailedJobs(_ context.Context, limit int) ([]core.FailedJob, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	jobs := make([]core.FailedJob, 0)
	for i := len(repo.db.failedJobs) - 1; i >= 0; i-- {
		if limit > 0 && len(jobs) == limit {
			break
		}
		jobs = append(jobs, repo.db.failedJobs[i])
	}
	return jobs, nil
}
