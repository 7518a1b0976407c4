package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"courtsync/pkg/kafka"
)

// Metrics counts publish and consume outcomes across every producer and
// consumer in the process.
type Metrics struct {
	Published       atomic.Int64
	PublishFailures atomic.Int64
	Consumed        atomic.Int64
	ConsumeFailures atomic.Int64

	publishNanos atomic.Int64
	consumeNanos atomic.Int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the process-wide counters.
func GetMetrics() *Metrics {
	return globalMetrics
}

// AvgPublishDuration is the mean latency of successful publishes.
func (m *Metrics) AvgPublishDuration() time.Duration {
	published := m.Published.Load()
	if published == 0 {
		return 0
	}
	return time.Duration(m.publishNanos.Load() / published)
}

// AvgConsumeDuration is the mean latency of handled messages.
func (m *Metrics) AvgConsumeDuration() time.Duration {
	consumed := m.Consumed.Load()
	if consumed == 0 {
		return 0
	}
	return time.Duration(m.consumeNanos.Load() / consumed)
}

// MetricsProducerMiddleware counts publish attempts and their latency.
func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		globalMetrics.publishNanos.Add(int64(time.Since(start)))

		if err != nil {
			globalMetrics.PublishFailures.Add(1)
		} else {
			globalMetrics.Published.Add(1)
		}

		return err
	}
}

// MetricsConsumerMiddleware counts handled messages and their latency.
func MetricsConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		globalMetrics.consumeNanos.Add(int64(time.Since(start)))

		if err != nil {
			globalMetrics.ConsumeFailures.Add(1)
		} else {
			globalMetrics.Consumed.Add(1)
		}

		return err
	}
}
