package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/notification"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      string    `db:"type"`
	Data      null.JSON `db:"data"`
	ReadAt    null.Time `db:"read_at"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	if r.ReadAt.Valid {
		r.ReadAt.Time = r.ReadAt.Time.UTC()
	}
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Data:      r.Data,
		ReadAt:    r.ReadAt,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

const notificationColumns = "id, user_id, type, data, read_at, created_at"

type notificationRepository struct {
	db core.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db core.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	var row notificationRow
	err := repo.db.GetContext(ctx, &row,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns,
		n.ID, n.UserID, n.Type, n.Data, n.ReadAt, n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return row.notification(), nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, userID, id string) (notification.Notification, error) {
	if !validID(id) || !validID(userID) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	err := repo.db.GetContext(ctx, &row,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "getting notification")
	}
	return row.notification(), nil
}

func (repo notificationRepository) QueryNotifications(
	ctx context.Context,
	userID string,
	filter notification.QueryFilter,
) ([]notification.Notification, error) {
	if !validID(userID) {
		return []notification.Notification{}, nil
	}
	q := "SELECT " + notificationColumns + " FROM notifications WHERE user_id = $1"
	if filter.UnreadOnly {
		q += " AND read_at IS NULL"
	}
	q += " ORDER BY " + filter.Order().String() + " LIMIT $2"

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID, filter.Limit); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		notifs = append(notifs, r.notification())
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	var count int
	err := repo.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL", userID)
	return count, errors.Wrap(err, "counting unread notifications")
}

func (repo notificationRepository) MarkNotificationRead(
	ctx context.Context,
	userID, id string,
	at time.Time,
) (notification.Notification, error) {
	if !validID(id) || !validID(userID) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var row notificationRow
	err := repo.db.GetContext(ctx, &row,
		`UPDATE notifications SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns,
		id, userID, at,
	)
	if err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "marking notification read")
	}
	return row.notification(), nil
}

func (repo notificationRepository) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL", userID, at)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "marking notifications read")
}
