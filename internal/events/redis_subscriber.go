package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Listen feeds events published on channel to handler until ctx is done.
// Messages that do not decode as an Event are logged and skipped.
func Listen(ctx context.Context, client *redis.Client, channel string, handler EventHandler, logger *zap.Logger) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("undecodable ticket event", zap.String("channel", channel), zap.Error(err))
				continue
			}
			if err := handler(ctx, event); err != nil {
				logger.Warn("ticket event handler failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err),
				)
			}
		}
	}
}
