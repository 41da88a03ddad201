package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.notifications = append(repo.db.notifications, n)
	repo.db.wrote(TableNotifications)
	return n, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, userID, id string) (notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, n := range repo.db.notifications {
		if n.ID == id && n.UserID == userID {
			return n, nil
		}
	}
	return notification.Notification{}, notification.ErrNotFound
}

// QueryNotifications lists newest first, or oldest first when asked to.
func (repo *notificationRepository) QueryNotifications(
	_ context.Context,
	userID string,
	filter notification.QueryFilter,
) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	all := repo.db.notifications
	at := func(i int) notification.Notification { return all[len(all)-1-i] }
	if filter.Order().Ascending {
		at = func(i int) notification.Notification { return all[i] }
	}

	notifs := make([]notification.Notification, 0)
	for i := range all {
		n := at(i)
		if n.UserID != userID || (filter.UnreadOnly && n.IsRead()) {
			continue
		}
		notifs = append(notifs, n)
		if filter.Limit > 0 && len(notifs) == filter.Limit {
			break
		}
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	count := 0
	for _, n := range repo.db.notifications {
		if n.UserID == userID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkNotificationRead(
	_ context.Context,
	userID, id string,
	at time.Time,
) (notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, n := range repo.db.notifications {
		if n.ID != id || n.UserID != userID {
			continue
		}
		if !n.IsRead() {
			n.ReadAt = null.TimeFrom(at)
			repo.db.notifications[i] = n
			repo.db.wrote(TableNotifications)
		}
		return n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) MarkAllNotificationsRead(_ context.Context, userID string, at time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	count := 0
	for i, n := range repo.db.notifications {
		if n.UserID == userID && !n.IsRead() {
			n.ReadAt = null.TimeFrom(at)
			repo.db.notifications[i] = n
			repo.db.wrote(TableNotifications)
			count++
		}
	}
	return count, nil
}
