package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mls-delivery/pkg/logger"
)

// Notifier publishes poll nudges on per-client channels. Delivery is
// best-effort: the message is already durable in Postgres, so a dropped
// nudge only delays pickup until the client's next scheduled poll.
type Notifier struct {
	client *redis.Client
	logger *logger.Logger
}

func NewNotifier(client *redis.Client, log *logger.Logger) *Notifier {
	return &Notifier{client: client, logger: log}
}

type messageEvent struct {
	GroupID   string `json:"group_id"`
	MessageID string `json:"message_id"`
}

func (n *Notifier) MessageStored(ctx context.Context, groupID, messageID uuid.UUID, recipients []uuid.UUID) {
	payload, err := json.Marshal(messageEvent{
		GroupID:   groupID.String(),
		MessageID: messageID.String(),
	})
	if err != nil {
		return
	}
	for _, clientID := range recipients {
		channel := fmt.Sprintf("mls:client:%s:events", clientID)
		// One recipient's failure must not starve the rest of their nudge.
		if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
			if n.logger != nil {
				n.logger.Warnf("publish nudge to %s: %v", channel, err)
			}
			continue
		}
	}
}
