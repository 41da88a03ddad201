package points

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/events"
)

var ErrInvalidPoints = errors.New("points must be positive")

// Entry is one line of the points ledger.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Repository interface {
		// AddPoints appends the entry and returns the user's new total.
		AddPoints(ctx context.Context, e Entry) (int, error)
	}

	Service struct {
		repo      Repository
		publisher events.Publisher
		logger    core.Logger
	}
)

func NewService(repo Repository, publisher events.Publisher, logger core.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// Award credits points to the user and publishes PointsAwarded with the new total.
func (svc *Service) Award(ctx context.Context, userID string, pts int, reason string) (Entry, int, error) {
	if pts <= 0 {
		return Entry{}, 0, core.NewValidationError(ErrInvalidPoints, core.FieldError{Field: "points", Error: ErrInvalidPoints.Error()})
	}

	e := Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Points:    pts,
		Reason:    core.CleanString(reason),
		CreatedAt: time.Now().UTC(),
	}
	total, err := svc.repo.AddPoints(ctx, e)
	if err != nil {
		return Entry{}, 0, errors.Wrap(err, "adding points")
	}

	ev := events.PointsAwarded{UserID: userID, Points: pts, Total: total, Reason: e.Reason}
	if err = svc.publisher.Dispatch(ctx, ev); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing points for %s: %v", userID, err), err)
	}
	return e, total, nil
}
