package events

import (
	"context"
	"errors"
	"testing"

	ledgererrors "courtsync/internal/ledger/errors"
	syncerrors "courtsync/internal/sync/errors"
	"courtsync/internal/sync/service"
	"courtsync/pkg/kafka"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

type mockControl struct {
	triggerFunc func(trigger model.CycleTrigger, dates []string, force bool) (*service.TriggerResult, error)
	setLockFunc func(ctx context.Context, update model.LockUpdate) (model.SystemLock, error)

	triggers []model.CycleTrigger
	locks    []model.LockUpdate
}

func (m *mockControl) TriggerCycle(trigger model.CycleTrigger, dates []string, force bool) (*service.TriggerResult, error) {
	m.triggers = append(m.triggers, trigger)
	if m.triggerFunc != nil {
		return m.triggerFunc(trigger, dates, force)
	}
	return &service.TriggerResult{CycleID: "cycle-1", Dates: dates, Started: true}, nil
}

func (m *mockControl) SetLock(ctx context.Context, update model.LockUpdate) (model.SystemLock, error) {
	m.locks = append(m.locks, update)
	if m.setLockFunc != nil {
		return m.setLockFunc(ctx, update)
	}
	return model.SystemLock{Locked: update.Locked, Reason: update.Reason}, nil
}

func testConsumer(control *mockControl) *CommandConsumer {
	return &CommandConsumer{
		control: control,
		log:     logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"}),
	}
}

func commandMessage(eventType string, payload interface{}) kafka.Message {
	builder := kafka.NewMessage().
		WithKey("test").
		WithEventType(eventType).
		WithSource("test")
	if payload != nil {
		builder = builder.WithValue(payload)
	}
	return builder.Build()
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestHandleTriggerCommand(t *testing.T) {
	control := &mockControl{}
	consumer := testConsumer(control)

	msg := commandMessage("cycle.trigger", map[string]interface{}{
		"dates": []string{"2026-01-10"},
		"force": true,
	})

	if err := consumer.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(control.triggers) != 1 {
		t.Fatalf("expected one trigger, got %d", len(control.triggers))
	}
	if control.triggers[0] != model.TriggerCommand {
		t.Errorf("expected COMMAND trigger, got %s", control.triggers[0])
	}
}

func TestHandleTriggerCommandEmptyPayload(t *testing.T) {
	var gotDates []string
	control := &mockControl{
		triggerFunc: func(trigger model.CycleTrigger, dates []string, force bool) (*service.TriggerResult, error) {
			gotDates = dates
			return &service.TriggerResult{CycleID: "cycle-1", Started: true}, nil
		},
	}
	consumer := testConsumer(control)

	if err := consumer.handle(context.Background(), commandMessage("cycle.trigger", nil)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(gotDates) != 0 {
		t.Errorf("expected full-window trigger with no dates, got %v", gotDates)
	}
}

func TestHandleTriggerRefusalsAreSettled(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"cycle in progress", syncerrors.ErrCycleInProgress},
		{"sync locked", ledgererrors.ErrLocked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			control := &mockControl{
				triggerFunc: func(model.CycleTrigger, []string, bool) (*service.TriggerResult, error) {
					return nil, tc.err
				},
			}
			consumer := testConsumer(control)

			// A refused command is committed, not retried.
			if err := consumer.handle(context.Background(), commandMessage("cycle.trigger", nil)); err != nil {
				t.Fatalf("refusal should not surface as a processing error, got %v", err)
			}
		})
	}
}

func TestHandleTriggerMalformedPayloadFails(t *testing.T) {
	control := &mockControl{}
	consumer := testConsumer(control)

	msg := kafka.NewMessage().
		WithKey("test").
		WithEventType("cycle.trigger").
		Build()
	msg.Value = []byte(`{"dates": "not-a-list"}`)

	if err := consumer.handle(context.Background(), msg); err == nil {
		t.Fatal("expected a decode error for a malformed payload")
	}
	if len(control.triggers) != 0 {
		t.Errorf("malformed command must not reach the engine, got %d triggers", len(control.triggers))
	}
}

func TestHandleLockCommand(t *testing.T) {
	control := &mockControl{}
	consumer := testConsumer(control)

	msg := commandMessage("lock.set", model.LockUpdate{Locked: true, Reason: "maintenance window"})

	if err := consumer.handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(control.locks) != 1 {
		t.Fatalf("expected one lock update, got %d", len(control.locks))
	}
	if !control.locks[0].Locked || control.locks[0].Reason != "maintenance window" {
		t.Errorf("unexpected lock update %+v", control.locks[0])
	}
}

func TestHandleLockRejectionIsSettled(t *testing.T) {
	control := &mockControl{
		setLockFunc: func(context.Context, model.LockUpdate) (model.SystemLock, error) {
			return model.SystemLock{}, errors.New("Reason is required when engaging the lock")
		},
	}
	consumer := testConsumer(control)

	msg := commandMessage("lock.set", model.LockUpdate{Locked: true})
	if err := consumer.handle(context.Background(), msg); err != nil {
		t.Fatalf("rejected lock command should be committed, got %v", err)
	}
}

func TestHandleUnknownCommandIgnored(t *testing.T) {
	control := &mockControl{}
	consumer := testConsumer(control)

	if err := consumer.handle(context.Background(), commandMessage("cycle.abort", nil)); err != nil {
		t.Fatalf("unknown commands are skipped, got %v", err)
	}
	if len(control.triggers) != 0 || len(control.locks) != 0 {
		t.Error("unknown command must not reach the engine")
	}
}
