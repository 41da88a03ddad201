package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/metrics"
)

const defaultLimit = 50

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotification(ctx context.Context, userID, id string) (Notification, error)
		QueryNotifications(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error)
		CountUnreadNotifications(ctx context.Context, userID string) (int, error)
		// MarkNotificationRead sets read_at unless it is already set, and returns the stored notification.
		MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) (Notification, error)
		MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
	}

	// Broadcaster pushes a new notification to the recipient's live channel.
	Broadcaster interface {
		Broadcast(ctx context.Context, n Notification) error
	}

	Service struct {
		repo        Repository
		broadcaster Broadcaster
		logger      core.Logger
	}
)

// NewService returns a notification service. broadcaster is optional.
func NewService(repo Repository, broadcaster Broadcaster, logger core.Logger) *Service {
	return &Service{repo: repo, broadcaster: broadcaster, logger: logger}
}

// Notify stores an in-app notification for the user and pushes it to the user's channel.
// A failed push is only logged: clients still get the notification by polling.
func (svc *Service) Notify(ctx context.Context, userID, typ string, data interface{}) (Notification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Notification{}, errors.Wrap(err, "encoding notification data")
	}

	n, err := svc.repo.CreateNotification(ctx, Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Data:      null.JSONFrom(raw),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	metrics.NotificationsCreated.WithLabelValues(typ).Inc()

	if svc.broadcaster != nil {
		if err = svc.broadcaster.Broadcast(ctx, n); err != nil {
			svc.logger.Warn(fmt.Sprintf("broadcasting notification %s: %v", n.ID, err), err)
		}
	}
	return n, nil
}

func (svc *Service) List(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	return svc.repo.QueryNotifications(ctx, userID, filter)
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnreadNotifications(ctx, userID)
}

// MarkRead acknowledges a notification. Marking an already read notification keeps its original read_at.
func (svc *Service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	return svc.repo.MarkNotificationRead(ctx, userID, id, time.Now().UTC())
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return svc.repo.MarkAllNotificationsRead(ctx, userID, time.Now().UTC())
}
