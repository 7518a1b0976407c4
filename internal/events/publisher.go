// Package events connects the engine to Kafka: sealed cycles, lock
// transitions and booking attempts go out, control commands come in.
package events

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"courtsync/pkg/kafka"
	kafka_config "courtsync/pkg/kafka/config"
	kafka_middleware "courtsync/pkg/kafka/middleware"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

const (
	TopicCycles   = "courtsync.cycles"
	TopicLock     = "courtsync.lock"
	TopicBookings = "courtsync.bookings"
	TopicCommands = "courtsync.commands"

	dlqSuffix = ".dlq"

	eventSource = "courtsync"
)

// Publisher fans engine lifecycle events out to their topics. Publishing is
// best effort: a broker outage is logged and never fails the operation that
// produced the event.
type Publisher struct {
	cycles   *kafka.Producer
	lock     *kafka.Producer
	bookings *kafka.Producer
	log      *logger.Logger
	metrics  bool
}

func NewPublisher(cfg *kafka_config.Config, log *logger.Logger) (*Publisher, error) {
	p := &Publisher{log: log, metrics: cfg.EnableMiddleware}

	for _, binding := range []struct {
		topic string
		dst   **kafka.Producer
	}{
		{TopicCycles, &p.cycles},
		{TopicLock, &p.lock},
		{TopicBookings, &p.bookings},
	} {
		producer, err := kafka.NewProducer(cfg, binding.topic, binding.topic+dlqSuffix, log)
		if err != nil {
			p.Close()
			return nil, err
		}
		if cfg.EnableMiddleware {
			producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
			producer.Use(kafka_middleware.MetricsProducerMiddleware())
		}
		*binding.dst = producer
	}
	return p, nil
}

func (p *Publisher) CycleSealed(ctx context.Context, record *model.SyncCycleRecord) {
	msg := kafka.NewMessage().
		WithKey(record.ID).
		WithEventID(uuid.NewString()).
		WithEventType("cycle.sealed").
		WithSource(eventSource).
		WithValue(record).
		Build()
	if err := p.cycles.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish cycle event", "cycle_id", record.ID, "error", err)
	}
}

func (p *Publisher) LockChanged(ctx context.Context, lock model.SystemLock) {
	eventType := "lock.released"
	if lock.Locked {
		eventType = "lock.engaged"
	}
	msg := kafka.NewMessage().
		WithKey("system").
		WithEventID(uuid.NewString()).
		WithEventType(eventType).
		WithSource(eventSource).
		WithValue(lock).
		Build()
	if err := p.lock.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish lock event", "locked", lock.Locked, "error", err)
	}
}

func (p *Publisher) AttemptRecorded(ctx context.Context, attempt *model.BookingAttempt) {
	msg := kafka.NewMessage().
		WithKey(attempt.ID).
		WithEventID(uuid.NewString()).
		WithEventType("booking.attempt").
		WithSource(eventSource).
		WithValue(attempt).
		Build()
	if err := p.bookings.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event", "attempt_id", attempt.ID, "error", err)
	}
}

func (p *Publisher) Close() error {
	var errs []error
	for _, producer := range []*kafka.Producer{p.cycles, p.lock, p.bookings} {
		if producer == nil {
			continue
		}
		if err := producer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.metrics {
		snap := kafka_middleware.GetMetrics()
		p.log.Info("Publisher closing",
			"published", snap.Published.Load(),
			"failed", snap.PublishFailures.Load(),
			"avg_duration", snap.AvgPublishDuration(),
		)
	}
	return errors.Join(errs...)
}
