package kafka_middleware

import (
	"context"
	"medisched/pkg/kafka"
	"medisched/pkg/logger"
	"time"
)

// Logging logs every publish at Debug and failures at Warn or Error
// depending on whether the broker error looks transient.
func Logging(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		args := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.EventID(),
			"event_type", msg.EventType(),
			"duration", time.Since(start),
		}
		switch {
		case err == nil:
			log.Debug("Event published", args...)
		case kafka.IsTransient(err):
			log.Warn("Event publish failed, broker unavailable", append(args, "error", err)...)
		default:
			log.Error("Event publish failed", append(args, "error", err)...)
		}
		return err
	}
}
