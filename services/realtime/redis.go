package realtime

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/notification"
)

const EventNotificationCreated = "notification.created"

// Channel is the pub/sub channel a user's clients subscribe to.
func Channel(userID string) string {
	return "user." + userID
}

// Message is what subscribers of a user channel receive.
type Message struct {
	Event        string                    `json:"event"`
	Notification notification.Notification `json:"notification"`
}

type RedisBroadcaster struct {
	client redis.Cmdable
}

var _ notification.Broadcaster = (*RedisBroadcaster)(nil)

func NewRedisBroadcaster(client redis.Cmdable) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, n notification.Notification) error {
	payload, err := json.Marshal(Message{Event: EventNotificationCreated, Notification: n})
	if err != nil {
		return errors.Wrap(err, "encoding notification")
	}
	return errors.Wrap(b.client.Publish(ctx, Channel(n.UserID), string(payload)).Err(), "publishing notification")
}

func NewRedisClient(conf core.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
}
