package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/opsdesk/internal/events"
	"github.com/spec-kit/opsdesk/internal/persistence"
	"github.com/spec-kit/opsdesk/internal/service"
)

// StartNotificationWorker subscribes the notification service to ticket events. Events are
// forwarded to the Redis channel when Redis is configured, otherwise only logged.
func StartNotificationWorker(dispatcher events.Dispatcher, redis *persistence.Redis, channel string, logger *zap.Logger) *service.NotificationService {
	if dispatcher == nil {
		return nil
	}
	var publisher events.Publisher
	if redis.Enabled() && channel != "" {
		publisher = events.NewRedisPublisher(redis.Client, channel)
		logger.Info("forwarding ticket events", zap.String("channel", channel))
	}
	notifications := service.NewNotificationService(dispatcher, publisher, logger)
	notifications.RegisterHandlers()
	return notifications
}
