package model

import "time"

type CycleOutcome string

const (
	OutcomeRunning CycleOutcome = "RUNNING"
	OutcomeSuccess CycleOutcome = "SUCCESS"
	OutcomePartial CycleOutcome = "PARTIAL"
	OutcomeFailed  CycleOutcome = "FAILED"
)

type SourceStatus string

const (
	SourceOK      SourceStatus = "OK"
	SourceError   SourceStatus = "ERROR"
	SourceTimeout SourceStatus = "TIMEOUT"
)

type CycleTrigger string

const (
	TriggerScheduled CycleTrigger = "SCHEDULED"
	TriggerManual    CycleTrigger = "MANUAL"
	TriggerRefresh   CycleTrigger = "REFRESH"
	TriggerCommand   CycleTrigger = "COMMAND"
)

// SourceReport is the per-source slice of a cycle's audit record. Dropped
// counts raw records the normalizer rejected; those are not fatal to the
// cycle and surface here instead.
type SourceReport struct {
	Status     SourceStatus `json:"status" bson:"status"`
	Extracted  int          `json:"extracted" bson:"extracted"`
	Normalized int          `json:"normalized" bson:"normalized"`
	Dropped    int          `json:"dropped" bson:"dropped"`
	Error      string       `json:"error,omitempty" bson:"error,omitempty"`
}

// SyncCycleRecord is the append-only audit record of one sync cycle. It is
// inserted when the cycle starts and sealed exactly once when it ends; sealed
// records are never deleted or rewritten.
type SyncCycleRecord struct {
	ID         string                  `json:"id" bson:"_id"`
	Trigger    CycleTrigger            `json:"trigger" bson:"trigger"`
	Dates      []string                `json:"dates" bson:"dates"`
	StartedAt  time.Time               `json:"started_at" bson:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	Outcome    CycleOutcome            `json:"outcome" bson:"outcome"`
	Sources    map[string]SourceReport `json:"per_source_status" bson:"sources"`
	Facts      int                     `json:"facts" bson:"facts"`
	Mutations  int                     `json:"mutations" bson:"mutations"`
	Applied    int                     `json:"applied" bson:"applied"`
	Stale      []string                `json:"stale,omitempty" bson:"stale,omitempty"`
	Error      string                  `json:"error,omitempty" bson:"error,omitempty"`
}
