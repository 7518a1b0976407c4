package reconcile

import (
	"testing"
	"time"

	"courtsync/pkg/config"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

func testReconciler() *Reconciler {
	cfg := &config.Config{
		Log: logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"}),
	}
	return NewReconciler(cfg)
}

var (
	slotStart = time.Date(2026, 1, 10, 1, 30, 0, 0, time.UTC)
	syncedAt  = time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)
)

func fact(source model.Source, status model.SlotStatus, externalID string) model.BookingFact {
	return model.BookingFact{
		Source:     source,
		ExternalID: externalID,
		Facility:   "Badminton Synthetic Court 1",
		Sport:      "Badminton Synthetic",
		Court:      "Court 1",
		SlotStart:  slotStart,
		SlotEnd:    slotStart.Add(time.Hour),
		Status:     status,
		ObservedAt: syncedAt,
	}
}

func entry(status model.SlotStatus, truth model.Source, version int64) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:            "65f0a1b2c3d4e5f6a7b8c9d0",
		Facility:      "Badminton Synthetic Court 1",
		Sport:         "Badminton Synthetic",
		Court:         "Court 1",
		SlotStart:     slotStart,
		SlotEnd:       slotStart.Add(time.Hour),
		Status:        status,
		SourceOfTruth: truth,
		LastSyncedAt:  syncedAt.Add(-10 * time.Minute),
		Version:       version,
		CreatedAt:     syncedAt.Add(-24 * time.Hour),
	}
}

func snapshotOf(entries ...*model.LedgerEntry) map[model.SlotKey]*model.LedgerEntry {
	snap := make(map[model.SlotKey]*model.LedgerEntry, len(entries))
	for _, e := range entries {
		snap[e.Key()] = e
	}
	return snap
}

// ────────────────────────────────────────────────
// Tests for Reconcile()
// ────────────────────────────────────────────────

func TestReconcileMergedStatus(t *testing.T) {
	tests := []struct {
		name       string
		facts      []model.BookingFact
		wantStatus model.SlotStatus
		wantTruth  model.Source
	}{
		{
			name: "both agree available",
			facts: []model.BookingFact{
				fact(model.SourcePlayo, model.StatusAvailable, ""),
				fact(model.SourceHudle, model.StatusAvailable, "101"),
			},
			wantStatus: model.StatusAvailable,
			wantTruth:  model.SourceBoth,
		},
		{
			name: "both agree booked",
			facts: []model.BookingFact{
				fact(model.SourcePlayo, model.StatusBooked, ""),
				fact(model.SourceHudle, model.StatusBooked, "101"),
			},
			wantStatus: model.StatusBooked,
			wantTruth:  model.SourceBoth,
		},
		{
			name: "booking claim wins over availability",
			facts: []model.BookingFact{
				fact(model.SourcePlayo, model.StatusAvailable, ""),
				fact(model.SourceHudle, model.StatusBooked, "101"),
			},
			wantStatus: model.StatusConflict,
			wantTruth:  model.SourceHudle,
		},
		{
			name: "booking claim wins over cancellation",
			facts: []model.BookingFact{
				fact(model.SourcePlayo, model.StatusBooked, ""),
				fact(model.SourceHudle, model.StatusCancelled, "101"),
			},
			wantStatus: model.StatusConflict,
			wantTruth:  model.SourcePlayo,
		},
		{
			name: "cancellation wins over availability",
			facts: []model.BookingFact{
				fact(model.SourcePlayo, model.StatusAvailable, ""),
				fact(model.SourceHudle, model.StatusCancelled, "101"),
			},
			wantStatus: model.StatusCancelled,
			wantTruth:  model.SourceHudle,
		},
		{
			name: "single source keeps its claim",
			facts: []model.BookingFact{
				fact(model.SourceHudle, model.StatusBooked, "101"),
			},
			wantStatus: model.StatusBooked,
			wantTruth:  model.SourceHudle,
		},
	}

	r := testReconciler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutations, err := r.Reconcile(tt.facts, nil, syncedAt)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if len(mutations) != 1 {
				t.Fatalf("expected 1 mutation, got %d", len(mutations))
			}
			m := mutations[0]
			if m.Op != model.MutationInsert {
				t.Errorf("op = %s, want INSERT", m.Op)
			}
			if m.Entry.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", m.Entry.Status, tt.wantStatus)
			}
			if m.Entry.SourceOfTruth != tt.wantTruth {
				t.Errorf("source of truth = %s, want %s", m.Entry.SourceOfTruth, tt.wantTruth)
			}
			if m.Entry.Version != 1 {
				t.Errorf("insert version = %d, want 1", m.Entry.Version)
			}
		})
	}
}

func TestReconcileDoubleBookingBecomesConflict(t *testing.T) {
	r := testReconciler()

	hudle := fact(model.SourceHudle, model.StatusBooked, "101")
	playo := fact(model.SourcePlayo, model.StatusBooked, "playo-77")

	mutations, err := r.Reconcile([]model.BookingFact{playo, hudle}, nil, syncedAt)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(mutations) != 1 {
		t.Fatalf("expected a single conflict entry, got %d mutations", len(mutations))
	}
	e := mutations[0].Entry
	if e.Status != model.StatusConflict {
		t.Errorf("status = %s, want %s", e.Status, model.StatusConflict)
	}
	if e.SourceOfTruth != model.SourceBoth {
		t.Errorf("source of truth = %s, want %s", e.SourceOfTruth, model.SourceBoth)
	}
	if e.ExternalIDs["PLAYO"] != "playo-77" || e.ExternalIDs["HUDLE"] != "101" {
		t.Errorf("external ids = %v", e.ExternalIDs)
	}
}

func TestReconcileUpdateCarriesNextVersion(t *testing.T) {
	r := testReconciler()
	prior := entry(model.StatusAvailable, model.SourceBoth, 3)

	mutations, err := r.Reconcile(
		[]model.BookingFact{fact(model.SourceHudle, model.StatusBooked, "101")},
		snapshotOf(prior),
		syncedAt,
	)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(mutations) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(mutations))
	}
	m := mutations[0]
	if m.Op != model.MutationUpdate {
		t.Fatalf("op = %s, want UPDATE", m.Op)
	}
	if m.ExpectedVersion != 3 {
		t.Errorf("expected version = %d, want 3", m.ExpectedVersion)
	}
	if m.Entry.Version != 4 {
		t.Errorf("entry version = %d, want 4", m.Entry.Version)
	}
	if m.Entry.ID != prior.ID {
		t.Errorf("entry id = %q, want the stored id", m.Entry.ID)
	}
	if !m.Entry.CreatedAt.Equal(prior.CreatedAt) {
		t.Errorf("created at changed: %v", m.Entry.CreatedAt)
	}
	if !m.Entry.LastSyncedAt.Equal(syncedAt) {
		t.Errorf("last synced at = %v, want %v", m.Entry.LastSyncedAt, syncedAt)
	}
	if m.Entry.Status != model.StatusBooked || m.Entry.SourceOfTruth != model.SourceHudle {
		t.Errorf("entry resolved to %s/%s", m.Entry.Status, m.Entry.SourceOfTruth)
	}
}

func TestReconcileUnchangedIsNoOp(t *testing.T) {
	r := testReconciler()
	prior := entry(model.StatusBooked, model.SourceBoth, 2)
	prior.ExternalIDs = map[string]string{"HUDLE": "101"}

	facts := []model.BookingFact{
		fact(model.SourcePlayo, model.StatusBooked, ""),
		fact(model.SourceHudle, model.StatusBooked, "101"),
	}

	mutations, err := r.Reconcile(facts, snapshotOf(prior), syncedAt)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(mutations) != 0 {
		t.Fatalf("expected no mutations for an unchanged slot, got %d", len(mutations))
	}
}

func TestReconcileAbsenceIsNotCancellation(t *testing.T) {
	r := testReconciler()

	unseen := entry(model.StatusBooked, model.SourceHudle, 5)
	unseen.Facility = "Snooker Table 2"
	unseen.Court = "Table 2"

	mutations, err := r.Reconcile(
		[]model.BookingFact{fact(model.SourceHudle, model.StatusAvailable, "101")},
		snapshotOf(unseen),
		syncedAt,
	)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	for _, m := range mutations {
		if m.Entry.Facility == unseen.Facility {
			t.Fatalf("unobserved slot was mutated: %+v", m)
		}
	}
	if len(mutations) != 1 {
		t.Fatalf("expected 1 mutation for the observed slot, got %d", len(mutations))
	}
}

// Re-running the same facts against the post-apply ledger must change nothing.
func TestReconcileIdempotence(t *testing.T) {
	r := testReconciler()

	facts := []model.BookingFact{
		fact(model.SourcePlayo, model.StatusAvailable, ""),
		fact(model.SourceHudle, model.StatusAvailable, "101"),
	}
	booked := fact(model.SourceHudle, model.StatusBooked, "202")
	booked.Facility = "Snooker Table 1"
	booked.Sport = "Snooker"
	booked.Court = "Table 1"
	facts = append(facts, booked)

	first, err := r.Reconcile(facts, map[model.SlotKey]*model.LedgerEntry{}, syncedAt)
	if err != nil {
		t.Fatalf("first Reconcile() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(first))
	}

	applied := make(map[model.SlotKey]*model.LedgerEntry, len(first))
	for _, m := range first {
		e := m.Entry
		applied[e.Key()] = &e
	}

	second, err := r.Reconcile(facts, applied, syncedAt.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("second Reconcile() error = %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected an empty mutation set on re-run, got %d", len(second))
	}
}

func TestReconcileMergesExternalIDs(t *testing.T) {
	r := testReconciler()
	prior := entry(model.StatusAvailable, model.SourceBoth, 1)
	prior.ExternalIDs = map[string]string{"HUDLE": "old-id"}

	mutations, err := r.Reconcile(
		[]model.BookingFact{fact(model.SourceHudle, model.StatusAvailable, "new-id")},
		snapshotOf(prior),
		syncedAt,
	)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(mutations) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(mutations))
	}
	e := mutations[0].Entry
	if e.ExternalIDs["HUDLE"] != "new-id" {
		t.Errorf("external ids = %v", e.ExternalIDs)
	}
	if e.SourceOfTruth != model.SourceHudle {
		t.Errorf("source of truth = %s", e.SourceOfTruth)
	}
}

func TestReconcileContradictoryFacilityFails(t *testing.T) {
	r := testReconciler()

	a := fact(model.SourcePlayo, model.StatusAvailable, "")
	b := fact(model.SourceHudle, model.StatusAvailable, "101")
	b.Sport = "Snooker"
	b.Court = "Court 1"
	b.Facility = a.Facility

	mutations, err := r.Reconcile([]model.BookingFact{a, b}, nil, syncedAt)
	if err == nil {
		t.Fatal("expected an error for contradictory facility identifiers")
	}
	if mutations != nil {
		t.Fatalf("expected no mutations on failure, got %d", len(mutations))
	}
	rerr, ok := AsReconciliationError(err)
	if !ok {
		t.Fatalf("error is not a ReconciliationError: %v", err)
	}
	if rerr.Key != a.Key() {
		t.Errorf("error key = %v", rerr.Key)
	}
}
