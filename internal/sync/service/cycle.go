package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtsync/internal/extract"
	ledgererrors "courtsync/internal/ledger/errors"
	ledgerservice "courtsync/internal/ledger/service"
	"courtsync/internal/normalize"
	"courtsync/internal/reconcile"
	"courtsync/internal/sync/repository"
	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/timeslot"
)

// EventSink receives engine lifecycle events. Publishing is fire-and-forget;
// a sink must never block a cycle.
type EventSink interface {
	CycleSealed(ctx context.Context, record *model.SyncCycleRecord)
	LockChanged(ctx context.Context, lock model.SystemLock)
}

// CycleRunner executes one sync cycle end to end: extract from both
// platforms concurrently, normalize, reconcile against the ledger, apply.
type CycleRunner struct {
	cfg        *config.Config
	session    browser.SessionProvider
	extractors []extract.Extractor
	normalizer *normalize.Normalizer
	reconciler *reconcile.Reconciler
	ledger     ledgerservice.LedgerService
	cycles     repository.CycleRepository
	events     EventSink
	log        *logger.Logger
}

func NewCycleRunner(
	cfg *config.Config,
	cal *timeslot.Calendar,
	session browser.SessionProvider,
	extractors []extract.Extractor,
	ledger ledgerservice.LedgerService,
	cycles repository.CycleRepository,
	events EventSink,
) *CycleRunner {
	return &CycleRunner{
		cfg:        cfg,
		session:    session,
		extractors: extractors,
		normalizer: normalize.NewNormalizer(cfg, cal),
		reconciler: reconcile.NewReconciler(cfg),
		ledger:     ledger,
		cycles:     cycles,
		events:     events,
		log:        cfg.Log,
	}
}

type sourceResult struct {
	source  model.Source
	records []model.RawRecord
	err     error
}

// Run executes one cycle and always returns its sealed audit record. Per
// source failures degrade the cycle to PARTIAL; only a reconciliation fault,
// a store failure, or the panic lock seal it FAILED.
func (r *CycleRunner) Run(ctx context.Context, id string, trigger model.CycleTrigger, dates []string) (record *model.SyncCycleRecord) {
	record = &model.SyncCycleRecord{
		ID:        id,
		Trigger:   trigger,
		Dates:     dates,
		StartedAt: time.Now().UTC(),
		Outcome:   model.OutcomeRunning,
		Sources:   make(map[string]model.SourceReport, len(r.extractors)),
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Sync cycle panicked", "cycle_id", id, "panic", p)
			record = r.seal(ctx, record, model.OutcomeFailed, fmt.Errorf("cycle panicked: %v", p))
		}
	}()

	r.log.Info("Sync cycle started", "cycle_id", id, "trigger", trigger, "dates", dates)
	if err := r.cycles.Insert(ctx, record); err != nil {
		r.log.Error("Failed to record sync cycle start", "cycle_id", id, "error", err)
		return r.seal(ctx, record, model.OutcomeFailed, fmt.Errorf("recording cycle start: %w", err))
	}

	results := r.extractAll(ctx, dates)

	var rawRecords []model.RawRecord
	failedSources := 0
	for _, res := range results {
		report := model.SourceReport{
			Status:    model.SourceOK,
			Extracted: len(res.records),
		}
		if res.err != nil {
			failedSources++
			report.Status = model.SourceError
			if errors.Is(res.err, context.DeadlineExceeded) {
				report.Status = model.SourceTimeout
			}
			report.Error = res.err.Error()
			r.log.Error("Source extraction failed", "cycle_id", id, "source", res.source, "status", report.Status, "error", res.err)
		}
		record.Sources[string(res.source)] = report
		rawRecords = append(rawRecords, res.records...)
	}

	if failedSources == len(r.extractors) {
		return r.seal(ctx, record, model.OutcomeFailed, errors.New("all sources failed to extract"))
	}

	facts, dropped := r.normalizer.Normalize(rawRecords, record.StartedAt)
	degradedSources := r.countNormalization(record, facts, dropped)
	record.Facts = len(facts)

	keys := make([]model.SlotKey, 0, len(facts))
	seen := make(map[model.SlotKey]struct{}, len(facts))
	for _, f := range facts {
		key := f.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	snapshot, err := r.ledger.SnapshotByKeys(ctx, keys)
	if err != nil {
		return r.seal(ctx, record, model.OutcomeFailed, fmt.Errorf("reading ledger snapshot: %w", err))
	}

	mutations, err := r.reconciler.Reconcile(facts, snapshot, record.StartedAt)
	if err != nil {
		return r.seal(ctx, record, model.OutcomeFailed, err)
	}
	record.Mutations = len(mutations)

	result, err := r.ledger.ApplyMutations(ctx, mutations)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrLocked) {
			return r.seal(ctx, record, model.OutcomeFailed, errors.New("sync lock engaged; cycle results discarded"))
		}
		return r.seal(ctx, record, model.OutcomeFailed, fmt.Errorf("applying mutations: %w", err))
	}
	record.Applied = result.Applied
	for _, key := range result.Stale {
		record.Stale = append(record.Stale, key.String())
	}

	outcome := model.OutcomeSuccess
	if failedSources > 0 || degradedSources > 0 || len(record.Stale) > 0 || len(facts) == 0 {
		outcome = model.OutcomePartial
	}
	return r.seal(ctx, record, outcome, nil)
}

// extractAll fans out to every source concurrently and waits for all of them.
// Each extractor holds its own page handle, so one source's navigation never
// disturbs the other's in-flight observation.
func (r *CycleRunner) extractAll(ctx context.Context, dates []string) []sourceResult {
	requests := make([]extract.Request, 0, len(dates))
	for _, d := range dates {
		requests = append(requests, extract.Request{Date: d})
	}

	results := make([]sourceResult, len(r.extractors))
	done := make(chan struct{})
	pending := len(r.extractors)
	for i, ex := range r.extractors {
		go func(i int, ex extract.Extractor) {
			defer func() {
				if p := recover(); p != nil {
					results[i] = sourceResult{source: ex.Source(), err: fmt.Errorf("extractor panicked: %v", p)}
				}
				done <- struct{}{}
			}()
			records, err := ex.Extract(ctx, r.session, requests)
			results[i] = sourceResult{source: ex.Source(), records: records, err: err}
		}(i, ex)
	}
	for ; pending > 0; pending-- {
		<-done
	}
	return results
}

// countNormalization fills the per-source counters and returns how many
// sources lost every extracted record to normalization. Scattered drops are
// normal scrape noise; losing a whole source means its page shape changed.
func (r *CycleRunner) countNormalization(record *model.SyncCycleRecord, facts []model.BookingFact, dropped []error) int {
	normalized := make(map[model.Source]int, 2)
	for _, f := range facts {
		normalized[f.Source]++
	}
	drops := make(map[model.Source]int, 2)
	for _, err := range dropped {
		if nerr, ok := normalize.AsNormalizationError(err); ok {
			drops[nerr.Source]++
		}
	}
	degraded := 0
	for name, report := range record.Sources {
		report.Normalized = normalized[model.Source(name)]
		report.Dropped = drops[model.Source(name)]
		if report.Status == model.SourceOK && report.Extracted > 0 && report.Normalized == 0 {
			report.Status = model.SourceError
			report.Error = "every extracted record was dropped during normalization"
			degraded++
			r.log.Error("Source produced no usable facts",
				"cycle_id", record.ID,
				"source", name,
				"extracted", report.Extracted,
				"dropped", report.Dropped,
			)
		}
		record.Sources[name] = report
	}
	return degraded
}

func (r *CycleRunner) seal(ctx context.Context, record *model.SyncCycleRecord, outcome model.CycleOutcome, cause error) *model.SyncCycleRecord {
	now := time.Now().UTC()
	record.FinishedAt = &now
	record.Outcome = outcome
	if cause != nil {
		record.Error = cause.Error()
	}

	if err := r.cycles.Seal(ctx, record); err != nil {
		r.log.Error("Failed to seal sync cycle", "cycle_id", record.ID, "error", err)
	}
	if r.events != nil {
		r.events.CycleSealed(ctx, record)
	}

	r.log.Info("Sync cycle sealed",
		"cycle_id", record.ID,
		"outcome", record.Outcome,
		"facts", record.Facts,
		"mutations", record.Mutations,
		"applied", record.Applied,
		"stale", len(record.Stale),
		"error", record.Error,
	)
	return record
}
