package kafka_middleware

import (
	"context"
	"time"

	"courtsync/pkg/kafka"
	"courtsync/pkg/logger"
)

// LoggingProducerMiddleware records every publish with its outcome and
// latency. Successes log at debug so steady-state traffic stays quiet.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		duration := time.Since(start)

		if err != nil {
			log.Error("publish failed",
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"event_type", msg.GetEventType(),
				"duration", duration,
				"error", err,
			)
			return err
		}

		log.Debug("published",
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", duration,
		)
		return nil
	}
}

// LoggingConsumerMiddleware records every handled message with its
// partition position, outcome and latency.
func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		duration := time.Since(start)

		if err != nil {
			log.Error("message handling failed",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", msg.Key,
				"event_id", msg.GetEventID(),
				"event_type", msg.GetEventType(),
				"duration", duration,
				"error", err,
			)
			return err
		}

		log.Debug("message handled",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"duration", duration,
		)
		return nil
	}
}
