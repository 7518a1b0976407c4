package events

import (
	"context"
	"errors"
	"fmt"

	ledgererrors "courtsync/internal/ledger/errors"
	syncerrors "courtsync/internal/sync/errors"
	"courtsync/internal/sync/service"
	"courtsync/pkg/kafka"
	kafka_config "courtsync/pkg/kafka/config"
	kafka_middleware "courtsync/pkg/kafka/middleware"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

const commandGroupID = "courtsync-engine"

// Control is the slice of the scheduler the command consumer drives.
type Control interface {
	TriggerCycle(trigger model.CycleTrigger, dates []string, force bool) (*service.TriggerResult, error)
	SetLock(ctx context.Context, update model.LockUpdate) (model.SystemLock, error)
}

type triggerCommand struct {
	Dates []string `json:"dates"`
	Force bool     `json:"force"`
}

// CommandConsumer reads courtsync.commands and applies each command to the
// engine. A command the engine refuses (locked, cycle already running, blank
// lock reason) is a settled outcome, not a processing failure: it is logged
// and committed, never retried or dead-lettered. Only undecodable payloads
// go to the DLQ.
type CommandConsumer struct {
	consumer *kafka.Consumer
	control  Control
	log      *logger.Logger
	metrics  bool
}

func NewCommandConsumer(cfg *kafka_config.Config, control Control, log *logger.Logger) (*CommandConsumer, error) {
	c := &CommandConsumer{control: control, log: log, metrics: cfg.EnableMiddleware}

	consumer, err := kafka.NewConsumer(cfg, TopicCommands, commandGroupID, TopicCommands+dlqSuffix, c.handle, log)
	if err != nil {
		return nil, err
	}
	if cfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
	}
	c.consumer = consumer
	return c, nil
}

// Start blocks on the fetch loop until ctx is cancelled.
func (c *CommandConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *CommandConsumer) Close() error {
	err := c.consumer.Close()
	if c.metrics {
		snap := kafka_middleware.GetMetrics()
		c.log.Info("Command consumer closing",
			"consumed", snap.Consumed.Load(),
			"failed", snap.ConsumeFailures.Load(),
			"avg_duration", snap.AvgConsumeDuration(),
		)
	}
	return err
}

func (c *CommandConsumer) handle(ctx context.Context, msg kafka.Message) error {
	switch msg.GetEventType() {
	case "cycle.trigger":
		return c.handleTrigger(msg)
	case "lock.set":
		return c.handleLock(ctx, msg)
	default:
		c.log.Warn("Ignoring unknown command", "event_type", msg.GetEventType(), "key", msg.Key)
		return nil
	}
}

func (c *CommandConsumer) handleTrigger(msg kafka.Message) error {
	var cmd triggerCommand
	if len(msg.Value) > 0 {
		if err := msg.DecodeValue(&cmd); err != nil {
			return fmt.Errorf("decoding trigger command: %w", err)
		}
	}

	result, err := c.control.TriggerCycle(model.TriggerCommand, cmd.Dates, cmd.Force)
	if err != nil {
		if errors.Is(err, syncerrors.ErrCycleInProgress) || errors.Is(err, ledgererrors.ErrLocked) {
			c.log.Warn("Trigger command refused", "reason", err)
			return nil
		}
		c.log.Warn("Trigger command rejected", "error", err)
		return nil
	}

	if !result.Started {
		c.log.Info("Trigger command skipped by cooldown", "skipped", result.Skipped)
		return nil
	}
	c.log.Info("Cycle started by command", "cycle_id", result.CycleID, "dates", result.Dates)
	return nil
}

func (c *CommandConsumer) handleLock(ctx context.Context, msg kafka.Message) error {
	var update model.LockUpdate
	if err := msg.DecodeValue(&update); err != nil {
		return fmt.Errorf("decoding lock command: %w", err)
	}

	lock, err := c.control.SetLock(ctx, update)
	if err != nil {
		c.log.Warn("Lock command rejected", "error", err)
		return nil
	}
	c.log.Info("Lock set by command", "locked", lock.Locked, "reason", lock.Reason)
	return nil
}
