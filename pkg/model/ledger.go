package model

import "time"

// LedgerEntry is the reconciled record for one slot, uniquely keyed by
// (facility, slot_start, slot_end). Version increments on every accepted
// mutation; a write expecting an older version is rejected as stale.
type LedgerEntry struct {
	ID            string            `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Facility      string            `json:"facility" bson:"facility" validate:"required,min=2,max=120"`
	Sport         string            `json:"sport,omitempty" bson:"sport,omitempty"`
	Court         string            `json:"court,omitempty" bson:"court,omitempty"`
	SlotStart     time.Time         `json:"slot_start" bson:"slot_start" validate:"required"`
	SlotEnd       time.Time         `json:"slot_end" bson:"slot_end" validate:"required,gtfield=SlotStart"`
	Status        SlotStatus        `json:"status" bson:"status" validate:"required,oneof=AVAILABLE BOOKED CANCELLED CONFLICT"`
	SourceOfTruth Source            `json:"source_of_truth" bson:"source_of_truth" validate:"required,oneof=PLAYO HUDLE BOTH"`
	ExternalIDs   map[string]string `json:"external_ids,omitempty" bson:"external_ids,omitempty"`
	LastSyncedAt  time.Time         `json:"last_synced_at" bson:"last_synced_at"`
	Version       int64             `json:"version" bson:"version" validate:"min=1"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
}

func (e *LedgerEntry) Key() SlotKey {
	return SlotKey{Facility: e.Facility, SlotStart: e.SlotStart, SlotEnd: e.SlotEnd}
}

type MutationOp string

const (
	MutationInsert MutationOp = "INSERT"
	MutationUpdate MutationOp = "UPDATE"
)

// LedgerMutation is one reconciler decision. For updates, Entry carries the
// next state with Version already incremented and ExpectedVersion holds the
// version the decision was computed against; inserts expect no prior entry.
type LedgerMutation struct {
	Op              MutationOp  `json:"op"`
	Entry           LedgerEntry `json:"entry"`
	ExpectedVersion int64       `json:"expected_version"`
}

// ApplyResult reports what a transactional apply changed. Stale lists keys
// skipped because a concurrent write moved the stored version; they are
// retried on the next cycle.
type ApplyResult struct {
	Applied int       `json:"applied"`
	Stale   []SlotKey `json:"stale,omitempty"`
}
