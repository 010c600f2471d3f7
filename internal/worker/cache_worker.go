package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/opsdesk/internal/events"
	"github.com/spec-kit/opsdesk/internal/persistence"
)

// StartCacheInvalidation evicts cached tickets whenever any replica publishes a
// ticket event on channel. It is a no-op without Redis or a channel.
func StartCacheInvalidation(ctx context.Context, redis *persistence.Redis, channel string, evict events.EventHandler, logger *zap.Logger) {
	if !redis.Enabled() || channel == "" || evict == nil {
		return
	}
	go func() {
		if err := events.Listen(ctx, redis.Client, channel, evict, logger); err != nil {
			logger.Error("cache invalidation stopped", zap.String("channel", channel), zap.Error(err))
		}
	}()
	logger.Info("evicting cached tickets on events", zap.String("channel", channel))
}
