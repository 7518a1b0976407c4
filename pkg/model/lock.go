package model

import "time"

// SystemLock is the singleton panic switch. While engaged, the reconcile and
// apply stages refuse all ledger-mutating work; it starts disengaged on every
// process start and is toggled only through the control surface.
type SystemLock struct {
	Locked   bool       `json:"locked" bson:"locked"`
	LockedAt *time.Time `json:"locked_at,omitempty" bson:"locked_at,omitempty"`
	Reason   string     `json:"reason,omitempty" bson:"reason,omitempty"`
}

type EngineState string

const (
	EngineIdle    EngineState = "IDLE"
	EngineRunning EngineState = "RUNNING"
)

// EngineStatus is the control-surface view of the scheduler.
type EngineStatus struct {
	State     EngineState      `json:"state"`
	Lock      SystemLock       `json:"lock"`
	LastCycle *SyncCycleRecord `json:"last_cycle,omitempty"`
	NextRunAt *time.Time       `json:"next_run_at,omitempty"`
}

// LockUpdate is the control-surface request to engage or release the panic
// lock. Reason is required when engaging so the audit trail explains itself.
type LockUpdate struct {
	Locked bool   `json:"locked"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=300"`
}
