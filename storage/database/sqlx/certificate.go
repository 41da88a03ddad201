package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/certificate"
)

type certificateRow struct {
	ID       string    `db:"id"`
	UserID   string    `db:"user_id"`
	Serial   string    `db:"serial"`
	Points   int       `db:"points"`
	IssuedAt time.Time `db:"issued_at"`
}

type statsRow struct {
	Points             int `db:"points"`
	Badges             int `db:"badges"`
	ApprovedArticles   int `db:"approved_articles"`
	PassedProjects     int `db:"passed_projects"`
	AcceptedChallenges int `db:"accepted_challenges"`
}

type certificateRepository struct {
	db core.DB
}

var (
	_ certificate.Repository    = (*certificateRepository)(nil) // interface compliance check
	_ certificate.StatsProvider = (*certificateRepository)(nil)
)

func NewCertificateRepository(db core.DB) *certificateRepository {
	return &certificateRepository{db: db}
}

func (repo certificateRepository) GetCertificateByUserID(ctx context.Context, userID string) (certificate.Certificate, error) {
	if !validID(userID) {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	var row certificateRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT id, user_id, serial, points, issued_at FROM certificates WHERE user_id = $1", userID)
	if err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "getting certificate")
	}
	return certificate.Certificate(row), nil
}

func (repo certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO certificates (id, user_id, serial, points, issued_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.UserID, c.Serial, c.Points, c.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return certificate.Certificate{}, certificate.ErrCertificateExists
		}
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return c, nil
}

// GetUserStats reads the totals the eligibility policy is evaluated against.
func (repo certificateRepository) GetUserStats(ctx context.Context, userID string) (certificate.Stats, error) {
	if !validID(userID) {
		return certificate.Stats{}, nil
	}
	var row statsRow
	err := repo.db.GetContext(ctx, &row, `SELECT
		(SELECT COALESCE(SUM(points), 0) FROM points_ledger WHERE user_id = $1) AS points,
		(SELECT COUNT(*) FROM user_badges WHERE user_id = $1) AS badges,
		(SELECT COUNT(*) FROM articles WHERE author_id = $1 AND status = 'approved') AS approved_articles,
		(SELECT COUNT(*) FROM project_evaluations WHERE user_id = $1 AND passed) AS passed_projects,
		(SELECT COUNT(*) FROM challenge_submissions WHERE user_id = $1 AND accepted) AS accepted_challenges`,
		userID,
	)
	if err != nil {
		return certificate.Stats{}, errors.Wrap(err, "getting user stats")
	}
	return certificate.Stats(row), nil
}
