package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"courtsync/internal/extract"
	ledgererrors "courtsync/internal/ledger/errors"
	ledgerservice "courtsync/internal/ledger/service"
	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	apperrors "courtsync/pkg/errors"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/timeslot"
)

func testConfig() *config.Config {
	return &config.Config{
		Log:             logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"}),
		SlotGrid:        time.Hour,
		SyncInterval:    30 * time.Millisecond,
		SyncWindowDays:  2,
		RefreshCooldown: 10 * time.Minute,
	}
}

func testCalendar(t *testing.T) *timeslot.Calendar {
	t.Helper()
	cal, err := timeslot.NewCalendar("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewCalendar() error = %v", err)
	}
	return cal
}

// ────────────────────────────────────────────────
// Mock extractor, session, ledger, repository, sink
// ────────────────────────────────────────────────

type mockExtractor struct {
	source      model.Source
	records     []model.RawRecord
	err         error
	panicValue  any
	gotRequests []extract.Request
}

func (m *mockExtractor) Source() model.Source {
	return m.source
}

func (m *mockExtractor) Extract(ctx context.Context, session browser.SessionProvider, requests []extract.Request) ([]model.RawRecord, error) {
	m.gotRequests = requests
	if m.panicValue != nil {
		panic(m.panicValue)
	}
	return m.records, m.err
}

type stubSession struct{}

func (stubSession) GetPage(ctx context.Context, urlPattern string) (browser.Page, error) {
	return nil, nil
}
func (stubSession) Healthy(ctx context.Context) error { return nil }
func (stubSession) Close() error                      { return nil }

type mockLedgerService struct {
	applyFunc    func(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error)
	snapshotFunc func(ctx context.Context, keys []model.SlotKey) (map[model.SlotKey]*model.LedgerEntry, error)

	mu        sync.Mutex
	applied   [][]model.LedgerMutation
	snapshots int
}

func (m *mockLedgerService) ApplyMutations(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error) {
	m.mu.Lock()
	m.applied = append(m.applied, mutations)
	m.mu.Unlock()
	if m.applyFunc != nil {
		return m.applyFunc(ctx, mutations)
	}
	return &model.ApplyResult{Applied: len(mutations)}, nil
}

func (m *mockLedgerService) SnapshotByKeys(ctx context.Context, keys []model.SlotKey) (map[model.SlotKey]*model.LedgerEntry, error) {
	m.mu.Lock()
	m.snapshots++
	m.mu.Unlock()
	if m.snapshotFunc != nil {
		return m.snapshotFunc(ctx, keys)
	}
	return map[model.SlotKey]*model.LedgerEntry{}, nil
}

func (m *mockLedgerService) GetSlots(ctx context.Context, q ledgerservice.SlotQuery) ([]*model.LedgerEntry, int64, error) {
	return nil, 0, nil
}

func (m *mockLedgerService) GetByKey(ctx context.Context, key model.SlotKey) (*model.LedgerEntry, error) {
	return nil, ledgererrors.ErrNotFound
}

func (m *mockLedgerService) applyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func (m *mockLedgerService) lastApplied() []model.LedgerMutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.applied) == 0 {
		return nil
	}
	return m.applied[len(m.applied)-1]
}

type mockCycleRepository struct {
	findLatestFunc func(ctx context.Context) (*model.SyncCycleRecord, error)
	insertFunc     func(ctx context.Context, record *model.SyncCycleRecord) error
	findRecentFunc func(ctx context.Context, limit int, offset int64) ([]*model.SyncCycleRecord, error)
	countFunc      func(ctx context.Context) (int64, error)

	mu       sync.Mutex
	inserted []*model.SyncCycleRecord
	sealed   []*model.SyncCycleRecord
}

func (m *mockCycleRepository) Insert(ctx context.Context, record *model.SyncCycleRecord) error {
	m.mu.Lock()
	m.inserted = append(m.inserted, record)
	m.mu.Unlock()
	if m.insertFunc != nil {
		return m.insertFunc(ctx, record)
	}
	return nil
}

func (m *mockCycleRepository) Seal(ctx context.Context, record *model.SyncCycleRecord) error {
	m.mu.Lock()
	m.sealed = append(m.sealed, record)
	m.mu.Unlock()
	return nil
}

func (m *mockCycleRepository) FindLatest(ctx context.Context) (*model.SyncCycleRecord, error) {
	if m.findLatestFunc != nil {
		return m.findLatestFunc(ctx)
	}
	return nil, errors.New("no cycles")
}

func (m *mockCycleRepository) FindRecent(ctx context.Context, limit int, offset int64) ([]*model.SyncCycleRecord, error) {
	if m.findRecentFunc != nil {
		return m.findRecentFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockCycleRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockCycleRepository) sealCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sealed)
}

type mockEventSink struct {
	mu     sync.Mutex
	cycles []*model.SyncCycleRecord
	locks  []model.SystemLock
}

func (m *mockEventSink) CycleSealed(ctx context.Context, record *model.SyncCycleRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, record)
}

func (m *mockEventSink) LockChanged(ctx context.Context, lock model.SystemLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, lock)
}

func (m *mockEventSink) cycleEvents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cycles)
}

func (m *mockEventSink) lockEvents() []model.SystemLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SystemLock(nil), m.locks...)
}

// ────────────────────────────────────────────────
// Raw record fixtures
// ────────────────────────────────────────────────

func playoRaw(state string) model.RawRecord {
	return model.RawRecord{
		Source: model.SourcePlayo,
		Playo: &model.RawPlayoCell{
			DateLabel: "10 - Jan - 26",
			StartTime: "07:00",
			Sport:     "Badminton Synthetic",
			Court:     "Court 1",
			State:     state,
		},
	}
}

func hudleRaw(booked bool) model.RawRecord {
	return model.RawRecord{
		Source: model.SourceHudle,
		Hudle: &model.RawHudleSlot{
			Date:      "2026-01-10",
			StartTime: "2026-01-10 07:00:00",
			SportID:   "2",
			GroupName: "Court 5",
			SlotID:    "101",
			IsBooked:  booked,
		},
	}
}

type runnerFixture struct {
	runner *CycleRunner
	playo  *mockExtractor
	hudle  *mockExtractor
	ledger *mockLedgerService
	cycles *mockCycleRepository
	sink   *mockEventSink
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		playo:  &mockExtractor{source: model.SourcePlayo},
		hudle:  &mockExtractor{source: model.SourceHudle},
		ledger: &mockLedgerService{},
		cycles: &mockCycleRepository{},
		sink:   &mockEventSink{},
	}
	f.runner = NewCycleRunner(
		testConfig(),
		testCalendar(t),
		stubSession{},
		[]extract.Extractor{f.playo, f.hudle},
		f.ledger,
		f.cycles,
		f.sink,
	)
	return f
}

// ────────────────────────────────────────────────
// Tests for CycleRunner.Run()
// ────────────────────────────────────────────────

func TestRunAppliesAgreedFacts(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.records = []model.RawRecord{playoRaw("Available")}
	f.hudle.records = []model.RawRecord{hudleRaw(false)}

	record := f.runner.Run(context.Background(), "cycle-1", model.TriggerManual, []string{"2026-01-10"})

	if record.Outcome != model.OutcomeSuccess {
		t.Fatalf("outcome = %s, want %s (error: %s)", record.Outcome, model.OutcomeSuccess, record.Error)
	}
	if record.Facts != 2 {
		t.Errorf("facts = %d, want 2", record.Facts)
	}
	if record.Mutations != 1 || record.Applied != 1 {
		t.Errorf("mutations/applied = %d/%d, want 1/1", record.Mutations, record.Applied)
	}
	for _, source := range []string{"PLAYO", "HUDLE"} {
		report := record.Sources[source]
		if report.Status != model.SourceOK {
			t.Errorf("%s status = %s", source, report.Status)
		}
		if report.Extracted != 1 || report.Normalized != 1 {
			t.Errorf("%s extracted/normalized = %d/%d", source, report.Extracted, report.Normalized)
		}
	}

	mutations := f.ledger.lastApplied()
	if len(mutations) != 1 {
		t.Fatalf("applied %d mutations", len(mutations))
	}
	entry := mutations[0].Entry
	if entry.Status != model.StatusAvailable || entry.SourceOfTruth != model.SourceBoth {
		t.Errorf("entry resolved to %s/%s", entry.Status, entry.SourceOfTruth)
	}
	if entry.Facility != "Badminton Synthetic Court 1" {
		t.Errorf("facility = %q", entry.Facility)
	}

	if record.FinishedAt == nil {
		t.Error("record was not sealed with a finish time")
	}
	if f.cycles.sealCount() != 1 {
		t.Errorf("seal calls = %d, want 1", f.cycles.sealCount())
	}
	if f.sink.cycleEvents() != 1 {
		t.Errorf("cycle events = %d, want 1", f.sink.cycleEvents())
	}
	if len(f.playo.gotRequests) != 1 || f.playo.gotRequests[0].Date != "2026-01-10" {
		t.Errorf("playo requests = %+v", f.playo.gotRequests)
	}
}

// One source delivers a booking, the other times out: the cycle degrades to
// PARTIAL and the surviving source's booking still lands in the ledger.
func TestRunPartialOnSourceTimeout(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.records = []model.RawRecord{playoRaw("Booked")}
	f.hudle.err = fmt.Errorf("waiting for slot responses: %w", context.DeadlineExceeded)

	record := f.runner.Run(context.Background(), "cycle-2", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomePartial {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomePartial)
	}
	if record.Sources["HUDLE"].Status != model.SourceTimeout {
		t.Errorf("hudle status = %s, want %s", record.Sources["HUDLE"].Status, model.SourceTimeout)
	}
	if record.Sources["PLAYO"].Status != model.SourceOK {
		t.Errorf("playo status = %s", record.Sources["PLAYO"].Status)
	}

	mutations := f.ledger.lastApplied()
	if len(mutations) != 1 {
		t.Fatalf("applied %d mutations", len(mutations))
	}
	entry := mutations[0].Entry
	if entry.Status != model.StatusBooked {
		t.Errorf("status = %s, want %s", entry.Status, model.StatusBooked)
	}
	if entry.SourceOfTruth != model.SourcePlayo {
		t.Errorf("source of truth = %s, want %s", entry.SourceOfTruth, model.SourcePlayo)
	}
}

func TestRunFailsWhenAllSourcesFail(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.err = errors.New("board never loaded")
	f.hudle.err = errors.New("no slot responses")

	record := f.runner.Run(context.Background(), "cycle-3", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomeFailed {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomeFailed)
	}
	if f.ledger.snapshots != 0 || f.ledger.applyCalls() != 0 {
		t.Errorf("ledger touched on a fully failed extraction: snapshots=%d applies=%d",
			f.ledger.snapshots, f.ledger.applyCalls())
	}
	if f.cycles.sealCount() != 1 {
		t.Errorf("seal calls = %d", f.cycles.sealCount())
	}
}

// Both sources answering with zero slots is suspicious, never SUCCESS.
func TestRunZeroFactsSealsPartial(t *testing.T) {
	f := newRunnerFixture(t)

	record := f.runner.Run(context.Background(), "cycle-4", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomePartial {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomePartial)
	}
	if record.Facts != 0 || record.Mutations != 0 {
		t.Errorf("facts/mutations = %d/%d", record.Facts, record.Mutations)
	}
}

// A source whose every record fails normalization contributed nothing usable:
// its report flips to ERROR and the cycle degrades to PARTIAL.
func TestRunAllRecordsDroppedDegradesSource(t *testing.T) {
	f := newRunnerFixture(t)
	bad := playoRaw("Available")
	bad.Playo.DateLabel = "someday"
	f.playo.records = []model.RawRecord{bad}
	f.hudle.records = []model.RawRecord{hudleRaw(false)}

	record := f.runner.Run(context.Background(), "cycle-10", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomePartial {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomePartial)
	}
	playo := record.Sources["PLAYO"]
	if playo.Status != model.SourceError {
		t.Errorf("playo status = %s, want %s", playo.Status, model.SourceError)
	}
	if playo.Extracted != 1 || playo.Normalized != 0 || playo.Dropped != 1 {
		t.Errorf("playo extracted/normalized/dropped = %d/%d/%d",
			playo.Extracted, playo.Normalized, playo.Dropped)
	}
	if record.Sources["HUDLE"].Status != model.SourceOK {
		t.Errorf("hudle status = %s", record.Sources["HUDLE"].Status)
	}
	if record.Facts != 1 {
		t.Errorf("facts = %d, want 1", record.Facts)
	}
}

func TestRunFailsOnReconciliationFault(t *testing.T) {
	f := newRunnerFixture(t)
	// Two cells land on the same facility string with different sport and
	// court decompositions.
	a := playoRaw("Available")
	b := model.RawRecord{
		Source: model.SourcePlayo,
		Playo: &model.RawPlayoCell{
			DateLabel: "10 - Jan - 26",
			StartTime: "07:00",
			Sport:     "Badminton",
			Court:     "Synthetic Court 1",
			State:     "Booked",
		},
	}
	f.playo.records = []model.RawRecord{a, b}

	record := f.runner.Run(context.Background(), "cycle-5", model.TriggerManual, []string{"2026-01-10"})

	if record.Outcome != model.OutcomeFailed {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomeFailed)
	}
	if record.Error == "" {
		t.Error("sealed record carries no error")
	}
	if f.ledger.applyCalls() != 0 {
		t.Errorf("mutations were applied despite the fault")
	}
}

func TestRunDiscardsResultsWhenLocked(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.records = []model.RawRecord{playoRaw("Available")}
	f.ledger.applyFunc = func(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error) {
		return nil, apperrors.Wrap(ledgererrors.ErrLocked, apperrors.CodeLocked,
			"Sync is locked; ledger writes are suspended", http.StatusLocked)
	}

	record := f.runner.Run(context.Background(), "cycle-6", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomeFailed {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomeFailed)
	}
	if !strings.Contains(record.Error, "discarded") {
		t.Errorf("error = %q, want a discard notice", record.Error)
	}
	if record.Applied != 0 {
		t.Errorf("applied = %d, want 0", record.Applied)
	}
}

func TestRunStaleEntriesSealPartial(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.records = []model.RawRecord{playoRaw("Booked")}
	f.ledger.applyFunc = func(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error) {
		return &model.ApplyResult{Applied: 0, Stale: []model.SlotKey{mutations[0].Entry.Key()}}, nil
	}

	record := f.runner.Run(context.Background(), "cycle-7", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomePartial {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomePartial)
	}
	if len(record.Stale) != 1 {
		t.Fatalf("stale = %v", record.Stale)
	}
	if !strings.Contains(record.Stale[0], "Badminton Synthetic Court 1") {
		t.Errorf("stale key = %q", record.Stale[0])
	}
}

func TestRunExtractorPanicDegradesSource(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.records = []model.RawRecord{playoRaw("Available")}
	f.hudle.panicValue = "nil deref in parser"

	record := f.runner.Run(context.Background(), "cycle-8", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomePartial {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomePartial)
	}
	if record.Sources["HUDLE"].Status != model.SourceError {
		t.Errorf("hudle status = %s", record.Sources["HUDLE"].Status)
	}
	if !strings.Contains(record.Sources["HUDLE"].Error, "panicked") {
		t.Errorf("hudle error = %q", record.Sources["HUDLE"].Error)
	}
	if record.Sources["PLAYO"].Status != model.SourceOK {
		t.Errorf("playo status = %s", record.Sources["PLAYO"].Status)
	}
}

func TestRunSealsFailedOnPanic(t *testing.T) {
	f := newRunnerFixture(t)
	f.playo.records = []model.RawRecord{playoRaw("Available")}
	f.ledger.snapshotFunc = func(ctx context.Context, keys []model.SlotKey) (map[model.SlotKey]*model.LedgerEntry, error) {
		panic("snapshot exploded")
	}

	record := f.runner.Run(context.Background(), "cycle-9", model.TriggerScheduled, []string{"2026-01-10"})

	if record.Outcome != model.OutcomeFailed {
		t.Fatalf("outcome = %s, want %s", record.Outcome, model.OutcomeFailed)
	}
	if !strings.Contains(record.Error, "panicked") {
		t.Errorf("error = %q", record.Error)
	}
	if f.cycles.sealCount() != 1 {
		t.Errorf("seal calls = %d, want 1", f.cycles.sealCount())
	}
}
