package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/notification"
	logsvc "github.com/trezcool/madrasa/services/logger"
	"github.com/trezcool/madrasa/storage/database/inmem"
)

type broadcasterMock struct {
	err  error
	sent []notification.Notification
}

func (b *broadcasterMock) Broadcast(_ context.Context, n notification.Notification) error {
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, n)
	return nil
}

func setup(broadcaster notification.Broadcaster) (*notification.Service, *logsvc.RecordingLogger) {
	logger := logsvc.NewNopLogger()
	return notification.NewService(inmemdb.NewNotificationRepository(inmemdb.Open()), broadcaster, logger), logger
}

func TestService_Notify(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and broadcasts", func(t *testing.T) {
		b := &broadcasterMock{}
		svc, _ := setup(b)

		n, err := svc.Notify(ctx, "u1", notification.TypeBadgeGranted, map[string]string{"badge_name": "حافظ"})
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)
		assert.False(t, n.IsRead())

		var data map[string]string
		require.NoError(t, json.Unmarshal(n.Data.JSON, &data))
		assert.Equal(t, "حافظ", data["badge_name"])
		assert.Equal(t, []notification.Notification{n}, b.sent)
	})

	t.Run("a failed broadcast is only logged", func(t *testing.T) {
		svc, logger := setup(&broadcasterMock{err: errors.New("redis down")})

		_, err := svc.Notify(ctx, "u1", notification.TypeBadgeGranted, nil)
		require.NoError(t, err)
		assert.Len(t, logger.Entries("warn"), 1)

		count, err := svc.UnreadCount(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("without broadcaster", func(t *testing.T) {
		svc, _ := setup(nil)
		_, err := svc.Notify(ctx, "u1", notification.TypeBadgeGranted, nil)
		assert.NoError(t, err)
	})

	t.Run("data that cannot be encoded", func(t *testing.T) {
		svc, _ := setup(nil)
		_, err := svc.Notify(ctx, "u1", notification.TypeBadgeGranted, make(chan int))
		assert.Error(t, err)
	})
}

func TestService_MarkRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(nil)

	n, err := svc.Notify(ctx, "u1", notification.TypeArticleApproved, nil)
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, "u2", n.ID)
	assert.Equal(t, notification.ErrNotFound, err, "only the recipient can read it")

	read, err := svc.MarkRead(ctx, "u1", n.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead())

	time.Sleep(time.Millisecond)
	again, err := svc.MarkRead(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.True(t, read.ReadAt.Time.Equal(again.ReadAt.Time), "read_at is set once")
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(nil)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		n, err := svc.Notify(ctx, "u1", notification.TypePointsAwarded, map[string]int{"points": i})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	_, err := svc.Notify(ctx, "u2", notification.TypePointsAwarded, nil)
	require.NoError(t, err)
	_, err = svc.MarkRead(ctx, "u1", ids[1])
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter notification.QueryFilter
		want   []string
	}{
		{name: "newest first", want: []string{ids[2], ids[1], ids[0]}},
		{name: "oldest first", filter: notification.QueryFilter{Ordering: core.DBOrdering{Field: notification.OrderCreatedAt, Ascending: true}}, want: ids},
		{name: "unread only", filter: notification.QueryFilter{UnreadOnly: true}, want: []string{ids[2], ids[0]}},
		{name: "limit", filter: notification.QueryFilter{Limit: 1}, want: []string{ids[2]}},
		{name: "unknown ordering field", filter: notification.QueryFilter{Ordering: core.DBOrdering{Field: "type", Ascending: true}}, want: []string{ids[2], ids[1], ids[0]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifs, err := svc.List(ctx, "u1", tt.filter)
			require.NoError(t, err)
			got := make([]string, 0, len(notifs))
			for _, n := range notifs {
				got = append(got, n.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	updated, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	count, err := svc.UnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
